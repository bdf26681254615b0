package config

import "testing"

func TestResolveDefaults(t *testing.T) {
	tests := []struct {
		name    string
		filaEnv string
		wantAPI string
		wantWS  string
	}{
		{"development", "development", "http://192.168.1.111:3001/api/v1", "ws://192.168.1.111:3001"},
		{"staging", "staging", "https://fila-api-stage.cloudrun.app/api/v1", "wss://fila-api-stage.cloudrun.app"},
		{"production", "production", "https://fila-api-prod.cloudrun.app/api/v1", "wss://fila-api-prod.cloudrun.app"},
		{"unknown falls back to development", "something-else", "http://192.168.1.111:3001/api/v1", "ws://192.168.1.111:3001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("FILA_ENV", tc.filaEnv)
			env := Resolve()
			if env.APIBaseURL != tc.wantAPI {
				t.Fatalf("expected api %q, got %q", tc.wantAPI, env.APIBaseURL)
			}
			if env.WebsocketURL != tc.wantWS {
				t.Fatalf("expected ws %q, got %q", tc.wantWS, env.WebsocketURL)
			}
		})
	}
}

func TestResolveOverride(t *testing.T) {
	t.Setenv("FILA_ENV", "production")
	t.Setenv("API_BASE_URL_PROD", "https://example.com/api/v1")

	env := Resolve()
	if env.APIBaseURL != "https://example.com/api/v1" {
		t.Fatalf("override ignored, got %q", env.APIBaseURL)
	}
	if !env.IsProduction() || env.IsDevelopment() {
		t.Fatalf("expected production environment, got %q", env.Name)
	}
}

func TestGoogleConfigured(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		want     bool
	}{
		{"placeholder", "YOUR_WEB_CLIENT_ID.apps.googleusercontent.com", false},
		{"empty", "", false},
		{"real id", "1234-abc.apps.googleusercontent.com", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := GoogleConfig{ClientID: tc.clientID}
			if got := g.Configured(); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestGoogleRedirectURI(t *testing.T) {
	g := GoogleConfig{RedirectPort: 8085}
	if got := g.RedirectURI(); got != "http://127.0.0.1:8085/auth" {
		t.Fatalf("unexpected redirect uri %q", got)
	}
}
