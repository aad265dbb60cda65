// Package main generates bearer tokens for calling the API locally.
// Tokens are signed with the dev key unless -key is given and will NOT work
// against a deployment with its own signing key.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"apihub/internal/platform/config"
	"apihub/pkg/platform/middleware/auth"
)

const defaultTokenTTL = time.Hour

type tokenOutput struct {
	Token     string            `json:"token"`
	Email     string            `json:"email"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	defaults := config.Auth{
		SigningKey: config.DevSigningKey,
		Issuer:     "apihub-portal",
		Audience:   "apihub",
	}

	email := flag.String("email", "dev@example.com", "Caller email carried in the token")
	key := flag.String("key", defaults.SigningKey, "HS256 signing key (APIHUB_AUTH_SIGNING_KEY)")
	issuer := flag.String("issuer", defaults.Issuer, "Token issuer (APIHUB_AUTH_ISSUER)")
	audience := flag.String("audience", defaults.Audience, "Token audience (APIHUB_AUTH_AUDIENCE)")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	token, err := auth.NewHS256Validator(*key, *issuer, *audience).Issue(*email, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if !*jsonOutput {
		fmt.Println(token)
		return
	}

	out := tokenOutput{
		Token:     token,
		Email:     *email,
		ExpiresIn: ttl.String(),
		Usage: map[string]string{
			"header": "Authorization: Bearer " + token,
			"curl":   fmt.Sprintf("curl -H 'Authorization: Bearer %s' http://localhost:8080/v1/applications", token),
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
