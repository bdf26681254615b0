package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/config"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/store"
)

// validCPF passes the check-digit validation in any environment.
const validCPF = "529.982.247-25"

func newTestManager(t *testing.T, envName string, handler http.Handler) (*Manager, *store.SessionStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions := store.NewSessionStore(store.NewMemory())
	env := config.Environment{Name: envName, APIBaseURL: srv.URL}
	m := NewManager(env, config.GoogleConfig{}, sessions)
	return m, sessions, srv
}

func loginHandler(requests *int32) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/client/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		var body struct {
			CPF      string `json:"cpf"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "123456" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "Credenciais inválidas"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "backend-token",
			"user": map[string]string{
				"id":    "u1",
				"cpf":   body.CPF,
				"name":  "Maria",
				"phone": "+5511999999999",
			},
		})
	})
	return mux
}

func TestLoginWithCredentials(t *testing.T) {
	var requests int32
	m, sessions, _ := newTestManager(t, config.EnvProduction, loginHandler(&requests))

	session, identity, err := m.LoginWithCredentials(context.Background(), validCPF, "123456")
	if err != nil {
		t.Fatal(err)
	}
	if !session.IsValid() || session.Token != "backend-token" {
		t.Fatalf("unexpected session %+v", session)
	}
	if identity.Phone != "+5511999999999" || identity.UserType != "client" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if m.State() != StateAuthenticated {
		t.Fatalf("expected authenticated state, got %v", m.State())
	}

	token, _ := sessions.Token(context.Background())
	if token != "backend-token" {
		t.Fatalf("token not persisted, got %q", token)
	}
	stored, _ := sessions.Identity(context.Background())
	if stored.Name != "Maria" {
		t.Fatalf("identity not persisted, got %+v", stored)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	var requests int32
	m, _, _ := newTestManager(t, config.EnvProduction, loginHandler(&requests))

	_, _, err := m.LoginWithCredentials(context.Background(), validCPF, "wrong")
	if !apperr.IsKind(err, apperr.KindInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if got := apperr.MessageOf(err); got != "CPF ou senha incorretos" {
		t.Fatalf("unexpected message %q", got)
	}
	if m.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated after failure, got %v", m.State())
	}
}

func TestLoginStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   apperr.Kind
	}{
		{"missing endpoint", http.StatusNotFound, apperr.KindMisconfiguredEndpoint},
		{"server error", http.StatusInternalServerError, apperr.KindServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, _, _ := newTestManager(t, config.EnvProduction, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			_, _, err := m.LoginWithCredentials(context.Background(), validCPF, "123456")
			if !apperr.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestLoginUnreachable(t *testing.T) {
	sessions := store.NewSessionStore(store.NewMemory())
	env := config.Environment{Name: config.EnvProduction, APIBaseURL: "http://127.0.0.1:1"}
	m := NewManager(env, config.GoogleConfig{}, sessions)

	_, _, err := m.LoginWithCredentials(context.Background(), validCPF, "123456")
	if !apperr.IsKind(err, apperr.KindUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
}

// The designated bypass CPF reaches the network in development but is
// rejected locally in production, before any request is made.
func TestBypassCPFPerEnvironment(t *testing.T) {
	t.Run("development bypass", func(t *testing.T) {
		var requests int32
		m, _, _ := newTestManager(t, config.EnvDevelopment, loginHandler(&requests))

		_, _, err := m.LoginWithCredentials(context.Background(), "000.000.000-01", "123456")
		if err != nil {
			t.Fatal(err)
		}
		if atomic.LoadInt32(&requests) != 1 {
			t.Fatalf("expected one login request, got %d", requests)
		}
	})

	t.Run("production rejects before network", func(t *testing.T) {
		var requests int32
		m, _, _ := newTestManager(t, config.EnvProduction, loginHandler(&requests))

		_, _, err := m.LoginWithCredentials(context.Background(), "000.000.000-01", "123456")
		if !apperr.IsKind(err, apperr.KindInvalidCredentials) {
			t.Fatalf("expected invalid credentials, got %v", err)
		}
		if atomic.LoadInt32(&requests) != 0 {
			t.Fatalf("expected no network call, got %d", requests)
		}
	})
}

func TestMalformedLoginResponse(t *testing.T) {
	m, _, _ := newTestManager(t, config.EnvProduction, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>proxy error</html>"))
	}))
	_, _, err := m.LoginWithCredentials(context.Background(), validCPF, "123456")
	if !apperr.IsKind(err, apperr.KindMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestIsAuthenticated(t *testing.T) {
	valid := true
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"valid": valid})
	})

	m, sessions, _ := newTestManager(t, config.EnvProduction, mux)
	ctx := context.Background()

	if m.IsAuthenticated(ctx) {
		t.Fatal("expected false with no stored token")
	}

	sessions.SaveSession(ctx, "tok", models.ClientIdentity{Email: "a@b.com"})
	if !m.IsAuthenticated(ctx) {
		t.Fatal("expected true for valid token")
	}

	valid = false
	if m.IsAuthenticated(ctx) {
		t.Fatal("expected false when server says invalid")
	}

	// The failed validation must have cleared the session.
	token, _ := sessions.Token(ctx)
	if token != "" {
		t.Fatalf("expected token cleared, got %q", token)
	}
}

func TestIsAuthenticatedNetworkFailureClearsSession(t *testing.T) {
	sessions := store.NewSessionStore(store.NewMemory())
	env := config.Environment{Name: config.EnvProduction, APIBaseURL: "http://127.0.0.1:1"}
	m := NewManager(env, config.GoogleConfig{}, sessions)

	ctx := context.Background()
	sessions.SaveSession(ctx, "tok", models.ClientIdentity{Email: "a@b.com"})

	if m.IsAuthenticated(ctx) {
		t.Fatal("expected false when validation is unreachable")
	}
	token, _ := sessions.Token(ctx)
	if token != "" {
		t.Fatalf("expected token cleared, got %q", token)
	}
}

func TestLogoutAlwaysClearsLocally(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	m, sessions, _ := newTestManager(t, config.EnvProduction, mux)
	ctx := context.Background()
	sessions.SaveSession(ctx, "tok", models.ClientIdentity{Email: "a@b.com"})

	m.Logout(ctx)

	token, _ := sessions.Token(ctx)
	if token != "" {
		t.Fatalf("expected token removed even with server failure, got %q", token)
	}
	identity, _ := sessions.Identity(ctx)
	if identity.Email != "" {
		t.Fatalf("expected identity removed, got %+v", identity)
	}
	if m.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", m.State())
	}
	if m.IsAuthenticated(ctx) {
		t.Fatal("expected not authenticated after logout")
	}
}

// countingProvider records how many SignIn calls overlap, to prove logins
// are serialized.
type countingProvider struct {
	mu         sync.Mutex
	inFlight   int
	maxOverlap int
}

func (p *countingProvider) SignIn(ctx context.Context) (string, models.ClientIdentity, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxOverlap {
		p.maxOverlap = p.inFlight
	}
	p.mu.Unlock()

	time.Sleep(30 * time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	return "tok-google", models.ClientIdentity{Email: "g@b.com", UserType: "client"}, nil
}

func TestConcurrentLoginsAreSerialized(t *testing.T) {
	sessions := store.NewSessionStore(store.NewMemory())
	env := config.Environment{Name: config.EnvDevelopment, APIBaseURL: "http://127.0.0.1:1"}
	provider := &countingProvider{}
	m := NewManager(env, config.GoogleConfig{}, sessions, WithGoogleProvider(provider))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.LoginWithGoogle(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if provider.maxOverlap != 1 {
		t.Fatalf("expected logins serialized, max overlap %d", provider.maxOverlap)
	}

	token, _ := sessions.Token(context.Background())
	if token != "tok-google" {
		t.Fatalf("expected single persisted session, got %q", token)
	}
}
