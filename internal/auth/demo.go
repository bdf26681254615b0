package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
)

// demoTokenPrefix marks sessions minted locally, so a demo session can never
// be mistaken for a real one.
const demoTokenPrefix = "demo_"

const demoSigningKey = "fila-demo-secret"

const defaultDemoDelay = 2 * time.Second

// DemoGoogleProvider fabricates a deterministic identity after a simulated
// delay. Selected only on development builds without an OAuth client id; it
// exists so the UI can be worked on without live credentials.
type DemoGoogleProvider struct {
	Delay time.Duration
}

func (d *DemoGoogleProvider) SignIn(ctx context.Context) (string, models.ClientIdentity, error) {
	delay := d.Delay
	if delay == 0 {
		delay = defaultDemoDelay
	}

	select {
	case <-ctx.Done():
		return "", models.ClientIdentity{}, apperr.Wrap(apperr.KindUserCancelled, "Autenticação cancelada pelo usuário", ctx.Err())
	case <-time.After(delay):
	}

	identity := models.ClientIdentity{
		ID:       "demo_user_123",
		Email:    "usuario.demo@gmail.com",
		Name:     "Usuário Demonstração",
		Picture:  "https://via.placeholder.com/150",
		UserType: "client",
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   identity.ID,
		"email": identity.Email,
		"name":  identity.Name,
		"iss":   "fila-demo",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(demoSigningKey))
	if err != nil {
		return "", models.ClientIdentity{}, err
	}

	return demoTokenPrefix + signed, identity, nil
}

func IsDemoToken(token string) bool {
	return strings.HasPrefix(token, demoTokenPrefix)
}

func trimDemoPrefix(token string) string {
	return strings.TrimPrefix(token, demoTokenPrefix)
}
