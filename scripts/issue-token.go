package main

import (
	"fmt"
	"os"
	"time"

	"github.com/classbeam/liveclass-server-go/internal/auth"
	"github.com/classbeam/liveclass-server-go/internal/model"
)

// Issues a short-lived access token for local development. Production tokens
// come from the auth service.
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/issue-token.go <userId> <role> [tenantId]\n")
		os.Exit(1)
	}

	secret := os.Getenv("JWT_ACCESS_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Error: JWT_ACCESS_SECRET is not set\n")
		os.Exit(1)
	}

	identity := auth.Identity{
		UserID: os.Args[1],
		Role:   model.Role(os.Args[2]),
	}
	if len(os.Args) > 3 {
		identity.TenantID = os.Args[3]
	}

	token, err := auth.NewVerifier(secret).Sign(identity, 24*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
