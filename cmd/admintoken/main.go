// Command admintoken mints an operator JWT for the /debug and /api/admin endpoints.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"shuttle-market/internal/config"
	"shuttle-market/internal/logger"
	"shuttle-market/internal/middleware"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithDefaults()
	defer func() { _ = log.Sync() }()

	subject := flag.String("subject", "", "operator name recorded in the token")
	role := flag.String("role", middleware.RoleAdmin, "role claim")
	ttl := flag.Duration("ttl", time.Duration(cfg.JWT.Expiry)*time.Minute, "token lifetime")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: admintoken -subject <name> [-role admin] [-ttl 1h]")
		os.Exit(2)
	}

	token, err := middleware.IssueToken(cfg.JWT.Secret, *subject, *role, *ttl, time.Now())
	if err != nil {
		log.Fatal("Failed to issue token", zap.Error(err), zap.String("subject", *subject))
	}

	// Only the token goes to stdout so it can be captured by scripts
	fmt.Println(token)
}
