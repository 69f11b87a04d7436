package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	URL       string        `envconfig:"RELAY_URL" default:"ws://localhost:8080/ws"`
	Token     string        `envconfig:"RELAY_TOKEN" required:"true"`
	ChannelID string        `envconfig:"RELAY_CHANNEL_ID" required:"true"`
	UserName  string        `envconfig:"RELAY_USER_NAME" default:"cli"`
	LogLevel  string        `envconfig:"LOG_LEVEL" default:"INFO"`
	Refresh   time.Duration `envconfig:"RELAY_REFRESH" default:"2s"`
	// RELAY_COLOURS enables colorized output
	Colours bool `envconfig:"RELAY_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
