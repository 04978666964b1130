package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"callsync/internal/auth"
	"callsync/internal/config"
	"callsync/internal/rbac"
)

// Mints a signed token pair for operating the API. Run with the same
// environment as cmd/api so both sides share JWT_SECRET. A refresh token
// can be exchanged instead of minting a fresh pair; refresh tokens carry
// no role, so -role still decides what the new access token grants.
func main() {
	user := flag.String("user", "", "subject user id")
	role := flag.String("role", rbac.RoleViewer, "viewer, operator or admin")
	refresh := flag.String("refresh", "", "refresh token to exchange for a new pair")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal("config load failed: %v", err)
	}
	mgr, err := auth.NewManager(cfg.Auth)
	if err != nil {
		fatal("auth init failed: %v", err)
	}

	switch *role {
	case rbac.RoleViewer, rbac.RoleOperator, rbac.RoleAdmin:
	default:
		fatal("unknown role %q", *role)
	}

	now := time.Now()
	userID := *user
	if *refresh != "" {
		claims, err := mgr.Verify(*refresh, auth.TokenTypeRefresh, now)
		if err != nil {
			fatal("refresh token rejected: %v", err)
		}
		userID = claims.UserID
	}
	if userID == "" {
		fatal("-user is required (or pass -refresh)")
	}

	pair, err := mgr.IssuePair(now, userID, *role)
	if err != nil {
		fatal("token issue failed: %v", err)
	}

	out, _ := json.MarshalIndent(map[string]string{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "", "  ")
	fmt.Println(string(out))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
