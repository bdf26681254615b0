package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/api"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/auth"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/config"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/dashboard"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/realtime"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/store"
)

type consoleNotifier struct{}

func (consoleNotifier) TicketCalled(t models.Ticket, msg string) {
	log.Printf("[notify] senha %d chamada: %s", t.Number, msg)
}

func main() {
	useGoogle := flag.Bool("google", false, "login with Google instead of CPF/password")
	cpfFlag := flag.String("cpf", os.Getenv("FILA_CPF"), "CPF for credential login")
	passwordFlag := flag.String("password", os.Getenv("FILA_PASSWORD"), "password for credential login")
	flag.Parse()

	config.LoadEnv()
	env := config.Resolve()
	gcfg := config.LoadGoogle()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var kv store.Store
	if rcfg := config.LoadRedis(); rcfg.Enabled() {
		redisStore, err := store.NewRedis(ctx, rcfg.Addr, rcfg.Password, rcfg.DB)
		if err != nil {
			log.Fatal("[main] redis:", err)
		}
		defer redisStore.Close()
		kv = redisStore
	} else {
		kv = store.NewMemory()
	}
	sessions := store.NewSessionStore(kv)

	manager := auth.NewManager(env, gcfg, sessions)
	apiClient := api.New(env.APIBaseURL, sessions,
		api.WithNetworkLogs(env.EnableNetworkLogs),
		api.WithUnauthorizedHook(func() { manager.Expire(context.Background()) }),
	)
	channel := realtime.NewChannel()
	engine := dashboard.NewEngine(apiClient, manager, channel, consoleNotifier{})

	var (
		identity models.ClientIdentity
		err      error
	)
	if *useGoogle {
		_, identity, err = manager.LoginWithGoogle(ctx)
	} else {
		_, identity, err = manager.LoginWithCredentials(ctx, *cpfFlag, *passwordFlag)
	}
	if err != nil {
		log.Fatal("[main] login:", err)
	}

	snap, err := engine.LoadDashboard(ctx, identity)
	if err != nil {
		log.Fatal("[main] dashboard:", err)
	}
	log.Printf("[main] %d tickets, %d waiting, %d called",
		len(snap.FlatTickets), snap.Summary.TotalWaiting, snap.Summary.TotalCalled)

	if err := channel.Connect(ctx, env.WebsocketURL); err != nil {
		log.Println("[main] websocket:", err)
	} else {
		if id := identity.Identifier(); id != "" {
			channel.SubscribeToClient(id)
		}
		for _, ticket := range snap.FlatTickets {
			channel.SubscribeToQueue(ticket.QueueID)
		}
	}
	defer channel.Disconnect()

	go engine.Run(ctx, channel.Events())

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			manager.Logout(context.Background())
			engine.Reset()
			return
		case <-ticker.C:
			if _, err := engine.LoadDashboard(ctx, identity); err != nil {
				log.Println("[main] refresh:", err)
			}
			status := engine.Status()
			log.Printf("[main] connected=%v lastError=%q", status.Connected, status.LastError)
		}
	}
}
