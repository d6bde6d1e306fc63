package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/auth"
	"github.com/noah-isme/backend-pos/internal/client"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/special"
)

// priceBook is the seed file layout.
type priceBook struct {
	Items []struct {
		ID           string           `json:"id"`
		Price        decimal.Decimal  `json:"price"`
		Markdown     *decimal.Decimal `json:"markdown,omitempty"`
		SoldByWeight bool             `json:"soldByWeight"`
		Special      *special.Params  `json:"special,omitempty"`
	} `json:"items"`
	Scans []struct {
		Item   string          `json:"item"`
		Weight decimal.Decimal `json:"weight"`
	} `json:"scans"`
}

func main() {
	var (
		addr    = flag.String("addr", "http://localhost:8080", "API base URL")
		file    = flag.String("file", "pricebook.json", "price book to load")
		token   = flag.String("token", "", "admin bearer token; minted from AUTH_JWT_SECRET when empty")
		timeout = flag.Duration("timeout", 30*time.Second, "overall deadline")
	)
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read price book: %v", err)
	}
	var book priceBook
	if err := json.Unmarshal(raw, &book); err != nil {
		log.Fatalf("parse price book: %v", err)
	}

	bearer := *token
	if bearer == "" {
		bearer = mintToken()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*addr, bearer)
	id, err := c.Open(ctx)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	log.Printf("session %s opened", id)

	for _, it := range book.Items {
		if err := c.SetPrice(ctx, id, it.ID, it.Price, it.SoldByWeight); err != nil {
			log.Fatalf("price %s: %v", it.ID, err)
		}
		if it.Markdown != nil {
			if err := c.SetMarkdown(ctx, id, it.ID, *it.Markdown); err != nil {
				log.Fatalf("markdown %s: %v", it.ID, err)
			}
		}
		if it.Special != nil {
			if err := c.SetSpecial(ctx, id, it.ID, *it.Special); err != nil {
				log.Fatalf("special %s: %v", it.ID, err)
			}
		}
	}
	log.Printf("loaded %d items", len(book.Items))

	for _, s := range book.Scans {
		total, err := c.Scan(ctx, id, s.Item, s.Weight)
		if err != nil {
			log.Fatalf("scan %s: %v", s.Item, err)
		}
		log.Printf("scanned %s, total %s", s.Item, total.StringFixed(2))
	}

	receipt, err := c.Receipt(ctx, id)
	if err != nil {
		log.Fatalf("receipt: %v", err)
	}
	for _, line := range receipt.Lines {
		log.Printf("%-16s %8s %8s %s", line.Item, line.Quantity.String(), line.Cost.StringFixed(2), line.Special)
	}
	log.Printf("session %s total %s", id, receipt.Total.StringFixed(2))
}

// mintToken returns an empty token when no secret is configured, which
// matches a server running with open pricing routes.
func mintToken() string {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return ""
	}
	svc, err := auth.NewService(auth.Config{
		Secret:         cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		AccessTokenTTL: 5 * time.Minute,
	})
	if err != nil {
		log.Fatalf("initialise auth service: %v", err)
	}
	token, _, err := svc.Issue("seeder", cfg.Auth.AdminRole)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	return token
}
