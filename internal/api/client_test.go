package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) {
	return string(s), nil
}

const dashboardJSON = `{
	"client": {"identifier": "+5511999999999", "totalActiveTickets": 2},
	"summary": {"totalWaiting": 1, "totalCalled": 1, "avgWaitTime": 10, "nextCallEstimate": 5, "establishmentsCount": 1},
	"tickets": {
		"tenant-1": {
			"tenant": {"id": "tenant-1", "name": "Barbearia", "slug": "barbearia", "isActive": true},
			"queues": {
				"queue-1": {
					"queue": {"id": "queue-1", "name": "Corte", "capacity": 10, "avgServiceTime": 15, "isActive": true, "tenantId": "tenant-1"},
					"tickets": [
						{"id": "t1", "number": 12, "priority": 0, "status": "WAITING", "queueId": "queue-1", "createdAt": "2026-08-01T10:00:00Z", "updatedAt": "2026-08-01T10:00:00Z"},
						{"id": "t2", "number": 13, "priority": 0, "status": "CALLED", "queueId": "queue-1", "createdAt": "2026-08-01T10:05:00Z", "updatedAt": "2026-08-01T10:06:00Z"}
					]
				}
			}
		}
	},
	"realTimeMetrics": {"currentServiceSpeed": 1.5, "timeSinceLastCall": 30, "trendDirection": "stable"}
}`

func TestGetClientDashboard(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clients/dashboard" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(dashboardJSON))
	}))
	defer srv.Close()

	c := New(srv.URL, staticTokens("tok-1"))
	dash, err := c.GetClientDashboard(context.Background(), "+5511999999999", "")
	if err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if !strings.Contains(gotQuery, "phone=") {
		t.Fatalf("expected phone query param, got %q", gotQuery)
	}
	if dash.Summary.TotalWaiting != 1 || dash.Summary.TotalCalled != 1 {
		t.Fatalf("unexpected summary %+v", dash.Summary)
	}
	if len(dash.Tickets["tenant-1"].Queues["queue-1"].Tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %+v", dash.Tickets)
	}
}

func TestUnauthorizedInvokesHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Unauthorized"}`))
	}))
	defer srv.Close()

	hookCalled := false
	c := New(srv.URL, staticTokens("expired"), WithUnauthorizedHook(func() { hookCalled = true }))

	_, err := c.GetUserQueues(context.Background())
	if !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if !hookCalled {
		t.Fatal("expected unauthorized hook to run")
	}
}

func TestNonJSONBodyIsMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>It works!</body></html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetActiveQueues(context.Background())
	if !apperr.IsKind(err, apperr.KindMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}

	var appErr *apperr.Error
	if !asAppErr(err, &appErr) || !strings.Contains(appErr.RawBody, "<html>") {
		t.Fatalf("expected raw body retained, got %+v", appErr)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperr.Kind
	}{
		{"not found", http.StatusNotFound, "", apperr.KindMisconfiguredEndpoint},
		{"server error", http.StatusInternalServerError, "boom", apperr.KindServerError},
		{"bad gateway", http.StatusBadGateway, "", apperr.KindServerError},
		{"conflict", http.StatusConflict, `{"message": "Fila cheia"}`, apperr.KindServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := New(srv.URL, nil)
			_, err := c.GetTicketDetails(context.Background(), "t1")
			if !apperr.IsKind(err, tc.kind) {
				t.Fatalf("expected kind %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestConflictKeepsServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message": "Fila cheia"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.CreateTicket(context.Background(), "queue-1", models.CreateTicketRequest{ClientName: "Maria"})
	if got := apperr.MessageOf(err); got != "Fila cheia" {
		t.Fatalf("expected server message kept, got %q", got)
	}
}

func TestUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)
	_, err := c.GetActiveQueues(context.Background())
	if !apperr.IsKind(err, apperr.KindUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
}

func asAppErr(err error, target **apperr.Error) bool {
	e, ok := err.(*apperr.Error)
	if ok {
		*target = e
	}
	return ok
}
