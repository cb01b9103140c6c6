package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"schoolbus-backend/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Issues a signed API token for a driver or an admin.
func main() {
	userID := flag.String("user", "", "user ID (random when empty)")
	email := flag.String("email", "", "email claim")
	role := flag.String("role", middleware.RoleDriver, "driver or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	secret := os.Getenv("APP_JWT_SECRET")
	if secret == "" {
		log.Fatal("APP_JWT_SECRET environment variable not set")
	}
	if *role != middleware.RoleDriver && *role != middleware.RoleAdmin {
		log.Fatalf("Unknown role %q", *role)
	}
	if *userID == "" {
		*userID = uuid.New().String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": *userID,
		"email":   *email,
		"role":    *role,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(*ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	log.Printf("✅ Issued %s token for %s (expires in %s)", *role, *userID, *ttl)
	fmt.Println(signed)
}
