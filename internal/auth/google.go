package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/config"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
)

const googleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

// GoogleProvider signs the user in with Google and returns the
// backend-issued session token plus the normalized identity.
type GoogleProvider interface {
	SignIn(ctx context.Context) (string, models.ClientIdentity, error)
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// RealGoogleProvider runs the authorization-code + PKCE flow against the
// live Google endpoints and exchanges the result with the backend.
type RealGoogleProvider struct {
	cfg        config.GoogleConfig
	apiBaseURL string
	http       *http.Client
	prompter   Prompter

	// discoveryURL is swapped for a local server in tests.
	discoveryURL string
}

func NewRealGoogleProvider(cfg config.GoogleConfig, apiBaseURL string, httpClient *http.Client) *RealGoogleProvider {
	return &RealGoogleProvider{
		cfg:          cfg,
		apiBaseURL:   strings.TrimRight(apiBaseURL, "/"),
		http:         httpClient,
		prompter:     &LoopbackPrompter{Port: cfg.RedirectPort},
		discoveryURL: googleDiscoveryURL,
	}
}

func (p *RealGoogleProvider) SignIn(ctx context.Context) (string, models.ClientIdentity, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()

	// The verifier/challenge pair comes from the oauth2 helpers; the
	// challenge derivation is never computed by hand here.
	verifier := oauth2.GenerateVerifier()

	discovery, err := p.fetchDiscovery(ctx)
	if err != nil {
		return "", models.ClientIdentity{}, err
	}

	oconf := oauth2.Config{
		ClientID:    p.cfg.ClientID,
		RedirectURL: p.cfg.RedirectURI(),
		Scopes:      p.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  discovery.AuthorizationEndpoint,
			TokenURL: discovery.TokenEndpoint,
		},
	}
	authURL := oconf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	code, err := p.prompter.Prompt(ctx, authURL, state)
	if err != nil {
		return "", models.ClientIdentity{}, err
	}

	accessToken, err := p.exchangeCode(ctx, discovery.TokenEndpoint, code, verifier)
	if err != nil {
		return "", models.ClientIdentity{}, err
	}

	user, err := p.fetchUserInfo(ctx, discovery.UserinfoEndpoint, accessToken)
	if err != nil {
		return "", models.ClientIdentity{}, err
	}

	return p.authenticateWithBackend(ctx, accessToken, user)
}

func (p *RealGoogleProvider) fetchDiscovery(ctx context.Context) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.discoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnreachable, "Não foi possível obter a configuração do Google", err)
	}
	defer resp.Body.Close()

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedResponse, "Documento de descoberta do Google inválido", err)
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return nil, apperr.New(apperr.KindMalformedResponse, "Documento de descoberta do Google incompleto")
	}
	return &doc, nil
}

// exchangeCode trades the authorization code (plus PKCE verifier) for a
// provider access token. Done as a plain POST so a non-JSON answer — the
// token endpoint returning an HTML error page is a real failure mode — keeps
// its raw body for diagnostics.
func (p *RealGoogleProvider) exchangeCode(ctx context.Context, tokenEndpoint, code, verifier string) (string, error) {
	form := url.Values{
		"client_id":     {p.cfg.ClientID},
		"code":          {code},
		"code_verifier": {verifier},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {p.cfg.RedirectURI()},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTokenExchangeFailed, "Erro ao trocar código por token", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTokenExchangeFailed, "Erro ao ler resposta do token", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.WithBody(apperr.KindTokenExchangeFailed, "Erro ao trocar código por token", string(raw))
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &token); err != nil || token.AccessToken == "" {
		return "", apperr.WithBody(apperr.KindTokenExchangeFailed, "Resposta do Google não é um JSON válido", string(raw))
	}
	return token.AccessToken, nil
}

func (p *RealGoogleProvider) fetchUserInfo(ctx context.Context, userinfoEndpoint, accessToken string) (*googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuthorizationFailed, "Erro ao obter dados do usuário do Google", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindAuthorizationFailed, "Erro ao obter dados do usuário do Google")
	}

	var user googleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedResponse, "Dados do usuário do Google inválidos", err)
	}
	return &user, nil
}

func (p *RealGoogleProvider) authenticateWithBackend(ctx context.Context, accessToken string, user *googleUser) (string, models.ClientIdentity, error) {
	payload, err := json.Marshal(map[string]any{
		"access_token": accessToken,
		"user":         user,
	})
	if err != nil {
		return "", models.ClientIdentity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBaseURL+"/auth/google/token", strings.NewReader(string(payload)))
	if err != nil {
		return "", models.ClientIdentity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", models.ClientIdentity{}, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.ClientIdentity{}, apperr.Wrap(apperr.KindUnreachable, "Falha ao ler resposta do servidor", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
			return "", models.ClientIdentity{}, apperr.WithBody(apperr.KindMalformedResponse, "Resposta da API não é um JSON válido", string(raw))
		}
		return "", models.ClientIdentity{}, apperr.WithBody(apperr.KindBackendRejected, body.Message, string(raw))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID       string `json:"id"`
			Email    string `json:"email"`
			Name     string `json:"name"`
			Phone    string `json:"phone"`
			Picture  string `json:"picture"`
			UserType string `json:"userType"`
		} `json:"user"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.AccessToken == "" {
		return "", models.ClientIdentity{}, apperr.WithBody(apperr.KindMalformedResponse, "Resposta da API não é um JSON válido", string(raw))
	}

	identity := models.ClientIdentity{
		ID:       out.User.ID,
		Email:    out.User.Email,
		Name:     out.User.Name,
		Phone:    out.User.Phone,
		Picture:  out.User.Picture,
		UserType: out.User.UserType,
	}
	if identity.UserType == "" {
		identity.UserType = "client"
	}
	return out.AccessToken, identity, nil
}
