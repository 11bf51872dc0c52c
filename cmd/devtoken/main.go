// cmd/devtoken/main.go
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/your-org/coursekit-backend/internal/config"
	"github.com/your-org/coursekit-backend/internal/pkg/auth"
)

// Mints an access token for local testing against the API.
//
//	go run ./cmd/devtoken -user 42 -email dev@example.com -admin
func main() {
	userID := flag.Uint("user", 0, "user id to embed in the token")
	email := flag.String("email", "dev@example.com", "email claim")
	isAdmin := flag.Bool("admin", false, "grant admin privileges")
	flag.Parse()

	if *userID == 0 {
		log.Fatal("Usage: go run ./cmd/devtoken -user <id> [-email <email>] [-admin]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to mint tokens in production")
	}

	jwtManager := auth.NewJWTManager(cfg)
	token, err := jwtManager.GenerateAccessToken(*userID, *email, *isAdmin)
	if err != nil {
		log.Fatal("Error generating token:", err)
	}

	if _, err := jwtManager.ValidateAccessToken(token); err != nil {
		log.Fatal("Token verification failed:", err)
	}

	fmt.Printf("User: %d (admin=%t)\n", *userID, *isAdmin)
	fmt.Printf("Token: %s\n", token)
	fmt.Println("✅ Token verified successfully!")
}
