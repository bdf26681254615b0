package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
)

const (
	keyAuthToken  = "authToken"
	keyClientInfo = "clientInfo"
)

// SessionStore owns the two persisted keys of the session: the backend token
// and the serialized identity. They are written and removed together; a
// token without an identity (or the reverse) is never left behind.
type SessionStore struct {
	store Store
}

func NewSessionStore(s Store) *SessionStore {
	return &SessionStore{store: s}
}

func (s *SessionStore) SaveSession(ctx context.Context, token string, identity models.ClientIdentity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, keyAuthToken, token); err != nil {
		return err
	}
	if err := s.store.Set(ctx, keyClientInfo, string(raw)); err != nil {
		// Half-written sessions are worse than no session.
		_ = s.store.Delete(ctx, keyAuthToken)
		return err
	}
	return nil
}

// Token returns the stored token, or "" when no session is persisted.
func (s *SessionStore) Token(ctx context.Context) (string, error) {
	val, err := s.store.Get(ctx, keyAuthToken)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return val, err
}

func (s *SessionStore) Identity(ctx context.Context) (models.ClientIdentity, error) {
	var identity models.ClientIdentity
	raw, err := s.store.Get(ctx, keyClientInfo)
	if errors.Is(err, ErrNotFound) {
		return identity, nil
	}
	if err != nil {
		return identity, err
	}
	err = json.Unmarshal([]byte(raw), &identity)
	return identity, err
}

// Clear removes both keys. Both deletes always run, even if the first fails.
func (s *SessionStore) Clear(ctx context.Context) error {
	errToken := s.store.Delete(ctx, keyAuthToken)
	errInfo := s.store.Delete(ctx, keyClientInfo)
	return errors.Join(errToken, errInfo)
}
