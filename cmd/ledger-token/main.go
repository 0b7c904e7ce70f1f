// Command ledger-token mints a bearer token for local development.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ledger/internal/auth"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
)

func main() {
	var (
		subject    string
		role       string
		department string
		ttl        time.Duration
	)
	flag.StringVar(&subject, "sub", "", "Subject (user name or email)")
	flag.StringVar(&role, "role", "Treasurer", `Role, e.g. "Finance Manager", "Senior Pastor" or a treasurer title`)
	flag.StringVar(&department, "department", "", "Department the user belongs to")
	flag.DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	flag.Parse()

	if err := cli.LoadEnvFile(); err != nil {
		log.Printf("ignoring .env file: %v", err)
	}
	cfg := config.Load()
	if err := cfg.RequireAuth(); err != nil {
		log.Fatalf("auth: %v", err)
	}

	tokens := auth.NewTokenService(cfg.AuthSecret, cfg.AuthIssuer)
	tok, err := tokens.Mint(auth.Identity{
		Subject:    subject,
		Role:       core.Role(role),
		Department: department,
	}, ttl)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Fprintln(os.Stdout, tok)
}
