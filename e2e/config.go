package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_URL is the websocket endpoint; the suite is skipped when it is empty
	RelayURL    string `envconfig:"RELAY_URL"`
	InternalURL string `envconfig:"RELAY_INTERNAL_URL" default:"http://localhost:8080"`
	GrpcAddr    string `envconfig:"RELAY_GRPC_ADDR" default:"localhost:9090"`
	JWTSecret   string `envconfig:"JWT_SECRET"`
	JWTIssuer   string `envconfig:"JWT_ISSUER" default:"chat-relay"`
	InternalKey string `envconfig:"INTERNAL_KEY"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
