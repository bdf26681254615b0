// Package auth owns the session: credential and Google logins, token
// validation, logout, and the session lifecycle state machine.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/config"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/cpf"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/store"
)

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateExpired
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateLoggedOut:
		return "logged-out"
	}
	return "unauthenticated"
}

const (
	loginTimeout    = 10 * time.Second
	validateTimeout = 5 * time.Second
)

// Manager is the AuthSessionManager. One instance per process; logins are
// serialized so two concurrent calls can never persist two sessions.
type Manager struct {
	env      config.Environment
	sessions *store.SessionStore
	google   GoogleProvider
	http     *http.Client

	loginMu sync.Mutex

	stateMu sync.Mutex
	state   State
}

type Option func(*Manager)

func WithHTTPClient(h *http.Client) Option {
	return func(m *Manager) { m.http = h }
}

// WithGoogleProvider overrides the provider selected from configuration.
func WithGoogleProvider(p GoogleProvider) Option {
	return func(m *Manager) { m.google = p }
}

// NewManager selects the Google provider once, at construction: the real
// PKCE flow when a client id is configured, the demo flow on development
// builds without one.
func NewManager(env config.Environment, gcfg config.GoogleConfig, sessions *store.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		env:      env,
		sessions: sessions,
		http:     &http.Client{Timeout: loginTimeout},
		state:    StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.google == nil {
		if !gcfg.Configured() && env.IsDevelopment() {
			log.Println("[auth] google oauth not configured, using demo provider")
			m.google = &DemoGoogleProvider{}
		} else {
			m.google = NewRealGoogleProvider(gcfg, env.APIBaseURL, m.http)
		}
	}
	return m
}

func (m *Manager) State() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// Identity returns the persisted ClientIdentity, zero when logged out.
func (m *Manager) Identity(ctx context.Context) (models.ClientIdentity, error) {
	return m.sessions.Identity(ctx)
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Message     string `json:"message"`
	User        struct {
		ID      string `json:"id"`
		CPF     string `json:"cpf"`
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	} `json:"user"`
}

// LoginWithCredentials authenticates with CPF and password. The CPF is
// validated locally before any network traffic; production never accepts the
// development bypass documents.
func (m *Manager) LoginWithCredentials(ctx context.Context, document, password string) (models.Session, models.ClientIdentity, error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	m.setState(StateAuthenticating)

	if !cpf.Valid(document, m.env.Name) {
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, apperr.New(apperr.KindInvalidCredentials, "CPF inválido")
	}

	body := map[string]string{"cpf": cpf.Clean(document), "password": password}
	raw, status, err := m.post(ctx, m.env.APIBaseURL+"/auth/client/login", body, loginTimeout)
	if err != nil {
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, err
	}

	switch {
	case status == http.StatusUnauthorized:
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, apperr.New(apperr.KindInvalidCredentials, "CPF ou senha incorretos")
	case status == http.StatusNotFound:
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, apperr.New(apperr.KindMisconfiguredEndpoint, "Serviço de autenticação não encontrado")
	case status >= 500:
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, apperr.WithBody(apperr.KindServerError, "Erro no servidor. Tente novamente mais tarde.", string(raw))
	case status < 200 || status > 299:
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, apperr.WithBody(apperr.KindServerError, serverMessage(raw, "Erro na autenticação"), string(raw))
	}

	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.AccessToken == "" {
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, apperr.WithBody(apperr.KindMalformedResponse, "Resposta de login inválida", string(raw))
	}

	identity := models.ClientIdentity{
		ID:       resp.User.ID,
		CPF:      resp.User.CPF,
		Name:     resp.User.Name,
		Phone:    resp.User.Phone,
		Email:    resp.User.Email,
		Picture:  resp.User.Picture,
		UserType: "client",
	}
	if identity.CPF == "" {
		identity.CPF = cpf.Clean(document)
	}

	if err := m.sessions.SaveSession(ctx, resp.AccessToken, identity); err != nil {
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, err
	}

	m.setState(StateAuthenticated)
	log.Printf("[auth] credential login ok for %s", identity.Identifier())
	return models.Session{Token: resp.AccessToken, Valid: true}, identity, nil
}

// LoginWithGoogle runs the configured provider flow end to end and persists
// the backend-issued session.
func (m *Manager) LoginWithGoogle(ctx context.Context) (models.Session, models.ClientIdentity, error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	m.setState(StateAuthenticating)

	token, identity, err := m.google.SignIn(ctx)
	if err != nil {
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, err
	}

	if err := m.sessions.SaveSession(ctx, token, identity); err != nil {
		m.setState(StateUnauthenticated)
		return models.Session{}, models.ClientIdentity{}, err
	}

	m.setState(StateAuthenticated)
	log.Printf("[auth] google login ok for %s", identity.Identifier())
	return models.Session{Token: token, Valid: true}, identity, nil
}

// IsAuthenticated reports whether a persisted token exists and still
// validates. Any validation failure, network included, clears the session:
// an unverifiable token is treated as no token.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	token, err := m.sessions.Token(ctx)
	if err != nil || token == "" {
		return false
	}

	if tokenExpired(token) {
		m.Expire(ctx)
		return false
	}

	// Demo sessions have no backend to validate against.
	if IsDemoToken(token) {
		return true
	}

	vctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(vctx, http.MethodGet, m.env.APIBaseURL+"/auth/validate", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.http.Do(req)
	if err != nil {
		m.Expire(ctx)
		return false
	}
	defer resp.Body.Close()

	var out struct {
		Valid bool `json:"valid"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&out) != nil || !out.Valid {
		m.Expire(ctx)
		return false
	}

	m.setState(StateAuthenticated)
	return true
}

// Logout notifies the backend on a best-effort basis and unconditionally
// clears the local session. It never fails locally.
func (m *Manager) Logout(ctx context.Context) {
	token, _ := m.sessions.Token(ctx)
	if token != "" && !IsDemoToken(token) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.env.APIBaseURL+"/auth/logout", bytes.NewReader([]byte("{}")))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			if resp, err := m.http.Do(req); err != nil {
				log.Printf("[auth] server-side logout failed: %v", err)
			} else {
				resp.Body.Close()
			}
		}
	}

	m.setState(StateLoggedOut)
	if err := m.sessions.Clear(ctx); err != nil {
		log.Printf("[auth] clearing session: %v", err)
	}
	m.setState(StateUnauthenticated)
}

// Expire handles a mid-session 401: the stored token and identity are
// removed together and the state settles back in unauthenticated. Wired as
// the api client's unauthorized hook.
func (m *Manager) Expire(ctx context.Context) {
	m.setState(StateExpired)
	if err := m.sessions.Clear(ctx); err != nil {
		log.Printf("[auth] clearing expired session: %v", err)
	}
	m.setState(StateUnauthenticated)
}

// tokenExpired pre-checks the exp claim locally so an obviously dead token
// skips the validation round trip. Opaque tokens pass through to the server.
func tokenExpired(token string) bool {
	raw := trimDemoPrefix(token)
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

func (m *Manager) post(ctx context.Context, target string, body any, timeout time.Duration) ([]byte, int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, 0, transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindUnreachable, "Falha ao ler resposta do servidor", err)
	}
	return respBody, resp.StatusCode, nil
}

func serverMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return fallback
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return apperr.Wrap(apperr.KindTimeout, "Timeout na conexão. Verifique sua internet.", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return apperr.Wrap(apperr.KindTimeout, "Timeout na conexão. Verifique sua internet.", err)
	}
	return apperr.Wrap(apperr.KindUnreachable, "Não foi possível conectar ao servidor. Verifique sua internet.", err)
}
