// mktoken mints a session token for local development and testing.
// Production tokens come from the auth service, never from here.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/courierchat/courier/internal/token"
)

func main() {
	userID := flag.String("user", "", "User ID to embed in the token")
	username := flag.String("name", "", "Username to embed in the token")
	secret := flag.String("secret", os.Getenv("JWT_SECRET_KEY"), "Signing secret (defaults to JWT_SECRET_KEY)")
	ttl := flag.Duration("ttl", 0, "Token lifetime; 0 means no expiry")
	flag.Parse()

	if *userID == "" || *username == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "Usage: mktoken -user <id> -name <username> [-secret <key>] [-ttl <duration>]")
		os.Exit(1)
	}

	tok, err := token.Issue(*userID, *username, []byte(*secret), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token=%s\n", tok)
}
