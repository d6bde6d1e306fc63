package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BasketMutationsTotal counts scan/remove outcomes.
	BasketMutationsTotal *prometheus.CounterVec
	// SpecialLinesTotal counts priced lines by the special kind that applied ("none" when plain).
	SpecialLinesTotal *prometheus.CounterVec
	// PricingUpdatesTotal counts catalog and special changes by field.
	PricingUpdatesTotal *prometheus.CounterVec
	// SessionsActive reports the number of open sessions.
	SessionsActive prometheus.Gauge
	// SessionsExpiredTotal counts sessions evicted for being idle.
	SessionsExpiredTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers point-of-sale Prometheus collectors.
// Subsequent calls are no-ops.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BasketMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "basket_mutations_total",
			Help:      "Count of basket scan and remove operations by outcome.",
		}, []string{"operation", "result"})
		SpecialLinesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "priced_lines_total",
			Help:      "Count of priced lines by special kind.",
		}, []string{"special"})
		PricingUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_updates_total",
			Help:      "Count of catalog and special updates by field and outcome.",
		}, []string{"field", "result"})
		SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open point-of-sale sessions.",
		})
		SessionsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Number of sessions evicted after being idle.",
		})

		mustRegisterCollector(reg, BasketMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BasketMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, SpecialLinesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SpecialLinesTotal = v
			}
		})
		mustRegisterCollector(reg, PricingUpdatesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PricingUpdatesTotal = v
			}
		})
		mustRegisterCollector(reg, SessionsActive, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				SessionsActive = v
			}
		})
		mustRegisterCollector(reg, SessionsExpiredTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SessionsExpiredTotal = v
			}
		})
	})
}

// ObserveBasketMutation records a scan or remove outcome when metrics are registered.
func ObserveBasketMutation(operation string, err error) {
	if BasketMutationsTotal == nil {
		return
	}
	BasketMutationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

// ObservePricingUpdate records a catalog or special update when metrics are registered.
func ObservePricingUpdate(field string, err error) {
	if PricingUpdatesTotal == nil {
		return
	}
	PricingUpdatesTotal.WithLabelValues(field, resultLabel(err)).Inc()
}

// ObservePricedLine records which special, if any, priced a quote line.
func ObservePricedLine(kind string) {
	if SpecialLinesTotal == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	SpecialLinesTotal.WithLabelValues(kind).Inc()
}

// SetSessionsActive updates the open sessions gauge when metrics are registered.
func SetSessionsActive(n int) {
	if SessionsActive != nil {
		SessionsActive.Set(float64(n))
	}
}

// AddSessionsExpired increments the expired sessions counter when metrics are registered.
func AddSessionsExpired(n int) {
	if SessionsExpiredTotal != nil && n > 0 {
		SessionsExpiredTotal.Add(float64(n))
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
