// Package dashboard keeps the local view of the user's tickets consistent
// with the backend: authoritative REST snapshots merged with websocket push
// events, behind one serialized read model.
package dashboard

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/api"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/realtime"
)

const refetchTimeout = 10 * time.Second

// SessionManager is the slice of the auth manager the engine needs.
type SessionManager interface {
	IsAuthenticated(ctx context.Context) bool
	Logout(ctx context.Context)
}

// Notifier shows the "your ticket was called" notification. OS-level
// permission and display live outside this core.
type Notifier interface {
	TicketCalled(ticket models.Ticket, message string)
}

// Snapshot is the normalized read model. Rebuilt wholesale on every fetch;
// individual tickets are patched in place only by push events.
type Snapshot struct {
	Summary         models.DashboardSummary
	TicketsByTenant map[string]models.TenantTickets
	FlatTickets     []models.Ticket
}

type Status struct {
	Connected bool
	LastError string
}

// Engine is the DashboardSyncEngine.
type Engine struct {
	api      *api.Client
	auth     SessionManager
	channel  *realtime.Channel
	notifier Notifier

	sf singleflight.Group

	mu       sync.Mutex
	identity models.ClientIdentity
	snapshot *Snapshot
	pending  []realtime.Event
	fetching bool
	gen      uint64
	lastErr  error
}

func NewEngine(apiClient *api.Client, auth SessionManager, channel *realtime.Channel, notifier Notifier) *Engine {
	return &Engine{
		api:      apiClient,
		auth:     auth,
		channel:  channel,
		notifier: notifier,
	}
}

// LoadDashboard fetches and normalizes the authoritative snapshot for the
// given identity. Concurrent calls are collapsed into a single REST request;
// the second caller waits and shares the first result.
func (e *Engine) LoadDashboard(ctx context.Context, identity models.ClientIdentity) (*Snapshot, error) {
	e.mu.Lock()
	e.identity = identity
	e.mu.Unlock()

	v, err, _ := e.sf.Do("dashboard", func() (any, error) {
		return e.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (e *Engine) fetch(ctx context.Context) (*Snapshot, error) {
	e.mu.Lock()
	gen := e.gen
	identity := e.identity
	e.fetching = true
	e.mu.Unlock()

	if !e.auth.IsAuthenticated(ctx) {
		e.auth.Logout(ctx)
		e.Reset()
		err := apperr.New(apperr.KindUnauthorized, "Sessão expirada. Faça login novamente.")
		e.finishFetch(gen, nil, err)
		return nil, err
	}

	dash, err := e.api.GetClientDashboard(ctx, identity.Phone, identity.Email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindUnauthorized) {
			e.auth.Logout(ctx)
			e.Reset()
		}
		e.finishFetch(gen, nil, err)
		return nil, err
	}

	snap, ok := e.finishFetch(gen, normalize(dash), nil)
	if !ok {
		// The session was torn down while this fetch was in flight; its
		// result must not resurrect cleared state.
		return nil, apperr.New(apperr.KindUnauthorized, "Sessão expirada. Faça login novamente.")
	}
	return snap, nil
}

// finishFetch installs the fetch result and then drains the push events that
// arrived while the fetch was in flight, in arrival order. A result from a
// generation older than the current one is discarded.
func (e *Engine) finishFetch(gen uint64, snap *Snapshot, err error) (*Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fetching = false
	e.lastErr = err

	if snap != nil {
		if e.gen != gen {
			e.pending = nil
			return nil, false
		}
		e.snapshot = snap
	}

	pending := e.pending
	e.pending = nil
	for _, ev := range pending {
		e.applyLocked(ev)
	}
	return e.snapshot, true
}

// ApplyPushEvent merges one push event into the read model. Events arriving
// during an in-flight fetch are queued and applied after that fetch lands,
// never interleaved with normalization and never dropped.
func (e *Engine) ApplyPushEvent(ev realtime.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fetching {
		e.pending = append(e.pending, ev)
		return
	}
	e.applyLocked(ev)
}

func (e *Engine) applyLocked(ev realtime.Event) {
	switch ev.Kind {
	case realtime.EventTicketCalled, realtime.EventTicketUpdate:
		if ev.Ticket == nil {
			return
		}
		if !e.patchTicketLocked(*ev.Ticket) {
			return
		}
		if ev.Kind == realtime.EventTicketCalled && e.notifier != nil {
			// Side effects must not block the read model.
			go e.notifier.TicketCalled(*ev.Ticket, ev.Message)
		}
	case realtime.EventClientUpdate:
		if e.snapshot == nil {
			return
		}
		// The event carries no usable diff; only a refetch can apply it.
		go e.refetch()
	case realtime.EventQueueUpdate:
		// Queue metadata changes surface on the next fetch.
	}
}

func (e *Engine) refetch() {
	ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
	defer cancel()

	e.mu.Lock()
	identity := e.identity
	e.mu.Unlock()

	if _, err := e.LoadDashboard(ctx, identity); err != nil {
		log.Printf("[sync] refetch after client-update: %v", err)
	}
}

// patchTicketLocked replaces the ticket in both the flat list and the nested
// map. Unknown ids are ignored; everything else is left untouched.
func (e *Engine) patchTicketLocked(t models.Ticket) bool {
	if e.snapshot == nil {
		return false
	}

	patched := false
	for i := range e.snapshot.FlatTickets {
		if e.snapshot.FlatTickets[i].ID == t.ID {
			e.snapshot.FlatTickets[i] = t
			patched = true
			break
		}
	}
	for _, tenant := range e.snapshot.TicketsByTenant {
		for _, queue := range tenant.Queues {
			for i := range queue.Tickets {
				if queue.Tickets[i].ID == t.ID {
					queue.Tickets[i] = t
				}
			}
		}
	}
	return patched
}

// Reset drops the snapshot and bumps the generation so in-flight fetch
// results are discarded. Called on logout and session expiry.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.gen++
	e.snapshot = nil
	e.pending = nil
	e.lastErr = nil
	e.mu.Unlock()
}

// Current returns the latest snapshot, nil before the first fetch.
func (e *Engine) Current() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	lastErr := e.lastErr
	e.mu.Unlock()

	return Status{
		Connected: e.channel != nil && e.channel.IsConnected(),
		LastError: apperr.MessageOf(lastErr),
	}
}

// Run consumes the realtime event queue until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, events <-chan realtime.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.ApplyPushEvent(ev)
		}
	}
}

// normalize flattens the nested tenant -> queue -> ticket payload. JSON
// objects decode into Go maps with no order, so tenant and queue ids are
// sorted; two fetches of the same payload yield value-equal snapshots.
func normalize(d *models.ClientDashboard) *Snapshot {
	snap := &Snapshot{
		Summary:         d.Summary,
		TicketsByTenant: d.Tickets,
	}

	tenantIDs := make([]string, 0, len(d.Tickets))
	for id := range d.Tickets {
		tenantIDs = append(tenantIDs, id)
	}
	sort.Strings(tenantIDs)

	for _, tid := range tenantIDs {
		tenant := d.Tickets[tid]
		queueIDs := make([]string, 0, len(tenant.Queues))
		for id := range tenant.Queues {
			queueIDs = append(queueIDs, id)
		}
		sort.Strings(queueIDs)

		for _, qid := range queueIDs {
			snap.FlatTickets = append(snap.FlatTickets, tenant.Queues[qid].Tickets...)
		}
	}
	return snap
}
