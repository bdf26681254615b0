// Package api is the REST client for the Fila Digital backend. It decorates
// every request with the stored bearer token and maps HTTP failures onto the
// shared error taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
)

const requestTimeout = 10 * time.Second

// TokenSource yields the current session token, "" when unauthenticated.
// Satisfied by store.SessionStore.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	logNetwork     bool
	onUnauthorized func()
}

type Option func(*Client)

// WithUnauthorizedHook registers the callback invoked whenever any endpoint
// answers 401. The auth manager uses it to tear the session down in one
// place instead of every call site.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithNetworkLogs(enabled bool) Option {
	return func(c *Client) { c.logNetwork = enabled }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetClientDashboard(ctx context.Context, phone, email string) (*models.ClientDashboard, error) {
	query := url.Values{}
	if phone != "" {
		query.Set("phone", phone)
	}
	if email != "" {
		query.Set("email", email)
	}
	var out models.ClientDashboard
	if err := c.do(ctx, http.MethodGet, "/clients/dashboard", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetClientTickets(ctx context.Context, phone, email string) (*models.ClientTicketsData, error) {
	query := url.Values{}
	if phone != "" {
		query.Set("phone", phone)
	}
	if email != "" {
		query.Set("email", email)
	}
	var out models.ClientTicketsData
	if err := c.do(ctx, http.MethodGet, "/clients/my-tickets", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUserQueues(ctx context.Context) (*models.UserQueuesData, error) {
	var out models.UserQueuesData
	if err := c.do(ctx, http.MethodGet, "/clients/my-queues", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTicketDetails(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var out models.Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets/"+url.PathEscape(ticketID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTicket(ctx context.Context, queueID string, req models.CreateTicketRequest) (*models.Ticket, error) {
	var out models.Ticket
	path := "/queues/" + url.PathEscape(queueID) + "/tickets"
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetActiveQueues(ctx context.Context) ([]models.Queue, error) {
	var out []models.Queue
	if err := c.do(ctx, http.MethodGet, "/queues", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetQueuesByTenant(ctx context.Context, tenantID string) ([]models.Queue, error) {
	var out []models.Queue
	path := "/tenants/" + url.PathEscape(tenantID) + "/queues"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if c.logNetwork {
		log.Printf("[api] %s %s", method, target)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindUnreachable, "Falha ao ler resposta do servidor", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apperr.WithBody(apperr.KindUnauthorized, serverMessage(raw, "Sessão expirada. Faça login novamente."), string(raw))
	}
	if resp.StatusCode == http.StatusNotFound {
		return apperr.New(apperr.KindMisconfiguredEndpoint, "Endpoint não encontrado: "+path)
	}
	if resp.StatusCode >= 500 {
		return apperr.WithBody(apperr.KindServerError, "Erro no servidor. Tente novamente mais tarde.", string(raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.WithBody(apperr.KindServerError, serverMessage(raw, fmt.Sprintf("Erro inesperado (%d)", resp.StatusCode)), string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.WithBody(apperr.KindMalformedResponse, "Resposta do servidor não é um JSON válido", string(raw))
	}
	return nil
}

// serverMessage pulls the {message} field from an error body, falling back
// to a fixed string when the body is not JSON.
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
