package auth

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"

	"github.com/gofiber/fiber/v2"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
)

// Prompter presents the authorization URL to the user and returns the
// authorization code Google redirected back with.
type Prompter interface {
	Prompt(ctx context.Context, authURL, state string) (string, error)
}

// LoopbackPrompter opens the system browser and captures the redirect on a
// short-lived listener bound to 127.0.0.1. The port must match the redirect
// URI registered for the OAuth client.
type LoopbackPrompter struct {
	Port        int
	OpenBrowser func(url string) error
}

type promptResult struct {
	code string
	err  error
}

func (p *LoopbackPrompter) Prompt(ctx context.Context, authURL, state string) (string, error) {
	results := make(chan promptResult, 1)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/auth", func(c *fiber.Ctx) error {
		res := handleCallback(c.Query("code"), c.Query("state"), c.Query("error"), state)
		select {
		case results <- res:
		default:
		}
		c.Set("Content-Type", "text/html; charset=utf-8")
		if res.err != nil {
			return c.SendString("<html><body><h3>Falha no login. Volte ao aplicativo.</h3></body></html>")
		}
		return c.SendString("<html><body><h3>Login concluído. Pode fechar esta janela.</h3></body></html>")
	})

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p.Port))
	if err != nil {
		return "", apperr.Wrap(apperr.KindAuthorizationFailed, "Não foi possível iniciar o listener local", err)
	}

	go func() {
		if err := app.Listener(ln); err != nil {
			select {
			case results <- promptResult{err: apperr.Wrap(apperr.KindAuthorizationFailed, "Listener local encerrou", err)}:
			default:
			}
		}
	}()
	defer app.Shutdown()

	open := p.OpenBrowser
	if open == nil {
		open = openBrowser
	}
	if err := open(authURL); err != nil {
		return "", apperr.Wrap(apperr.KindAuthorizationFailed, "Não foi possível abrir o navegador", err)
	}

	select {
	case <-ctx.Done():
		return "", apperr.Wrap(apperr.KindUserCancelled, "Autenticação cancelada pelo usuário", ctx.Err())
	case res := <-results:
		return res.code, res.err
	}
}

func handleCallback(code, gotState, oauthErr, wantState string) promptResult {
	if oauthErr == "access_denied" {
		return promptResult{err: apperr.New(apperr.KindUserCancelled, "Autenticação cancelada pelo usuário")}
	}
	if oauthErr != "" {
		return promptResult{err: apperr.New(apperr.KindAuthorizationFailed, "Autorização negada: "+oauthErr)}
	}
	if gotState != wantState {
		return promptResult{err: apperr.New(apperr.KindAuthorizationFailed, "Parâmetro state não confere")}
	}
	if code == "" {
		return promptResult{err: apperr.New(apperr.KindAuthorizationFailed, "Código de autorização não recebido")}
	}
	return promptResult{code: code}
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
