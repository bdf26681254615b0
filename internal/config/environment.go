package config

import "log"

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Environment carries the deployment-specific endpoints the client talks to.
// Resolved once at startup; everything downstream receives it by value.
type Environment struct {
	Name              string
	APIBaseURL        string
	WebsocketURL      string
	LogLevel          string
	EnableNetworkLogs bool
}

// Resolve picks the active environment from FILA_ENV and applies the
// per-environment endpoint defaults, each overridable via env vars.
func Resolve() Environment {
	name := GetEnv("FILA_ENV", EnvDevelopment)

	var env Environment
	switch name {
	case EnvStaging:
		env = Environment{
			Name:         EnvStaging,
			APIBaseURL:   GetEnv("API_BASE_URL_STAGING", "https://fila-api-stage.cloudrun.app/api/v1"),
			WebsocketURL: GetEnv("WEBSOCKET_URL_STAGING", "wss://fila-api-stage.cloudrun.app"),
			LogLevel:     GetEnv("LOG_LEVEL", "info"),
		}
	case EnvProduction:
		env = Environment{
			Name:         EnvProduction,
			APIBaseURL:   GetEnv("API_BASE_URL_PROD", "https://fila-api-prod.cloudrun.app/api/v1"),
			WebsocketURL: GetEnv("WEBSOCKET_URL_PROD", "wss://fila-api-prod.cloudrun.app"),
			LogLevel:     GetEnv("LOG_LEVEL", "warn"),
		}
	default:
		env = Environment{
			Name:         EnvDevelopment,
			APIBaseURL:   GetEnv("API_BASE_URL_DEV", "http://192.168.1.111:3001/api/v1"),
			WebsocketURL: GetEnv("WEBSOCKET_URL_DEV", "ws://192.168.1.111:3001"),
			LogLevel:     GetEnv("LOG_LEVEL", "debug"),
		}
	}
	env.EnableNetworkLogs = GetEnv("ENABLE_NETWORK_LOGS", "") == "true"

	if env.EnableNetworkLogs {
		log.Printf("[config] environment=%s api=%s ws=%s", env.Name, env.APIBaseURL, env.WebsocketURL)
	}
	return env
}

func (e Environment) IsDevelopment() bool {
	return e.Name == EnvDevelopment
}

func (e Environment) IsStaging() bool {
	return e.Name == EnvStaging
}

func (e Environment) IsProduction() bool {
	return e.Name == EnvProduction
}
