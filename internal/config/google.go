package config

import (
	"fmt"
	"strconv"
	"strings"
)

// GoogleConfig holds the OAuth client registration for the Google sign-in
// flow. Scopes are fixed; the backend only understands openid profile email.
type GoogleConfig struct {
	ClientID     string
	RedirectPort int
	Scopes       []string
}

func LoadGoogle() GoogleConfig {
	port, err := strconv.Atoi(GetEnv("OAUTH_REDIRECT_PORT", "8085"))
	if err != nil {
		port = 8085
	}
	return GoogleConfig{
		ClientID:     GetEnv("GOOGLE_CLIENT_ID", "YOUR_WEB_CLIENT_ID.apps.googleusercontent.com"),
		RedirectPort: port,
		Scopes:       []string{"openid", "profile", "email"},
	}
}

// Configured reports whether a real client id is present. The placeholder
// shipped in .env.example still contains "YOUR_".
func (g GoogleConfig) Configured() bool {
	return g.ClientID != "" && !strings.Contains(g.ClientID, "YOUR_")
}

func (g GoogleConfig) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d/auth", g.RedirectPort)
}
