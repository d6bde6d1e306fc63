package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/noah-isme/backend-pos/internal/auth"
	"github.com/noah-isme/backend-pos/internal/config"
)

func main() {
	var (
		subject = flag.String("sub", "", "token subject, usually the operator's staff id")
		roles   = flag.String("roles", "", "comma separated roles; defaults to AUTH_ADMIN_ROLE")
		ttl     = flag.Duration("ttl", 0, "token lifetime; defaults to AUTH_TOKEN_TTL")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if strings.TrimSpace(*subject) == "" {
		log.Fatal("-sub is required")
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	svc, err := auth.NewService(auth.Config{
		Secret:         cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		AccessTokenTTL: lifetime,
	})
	if err != nil {
		log.Fatalf("initialise auth service: %v", err)
	}

	granted := []string{cfg.Auth.AdminRole}
	if *roles != "" {
		granted = granted[:0]
		for _, role := range strings.Split(*roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				granted = append(granted, role)
			}
		}
	}

	token, expires, err := svc.Issue(strings.TrimSpace(*subject), granted...)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	log.Printf("token for %s with roles %v expires %s", *subject, granted, expires.Format(time.RFC3339))
	fmt.Println(token)
}
