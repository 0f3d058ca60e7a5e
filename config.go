package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config comes from the environment. The scanner url and access code are
// not here; they are prompted for once per match and kept in the store.
type Config struct {
	GameNumber   string        `env:"MAPEMBED_GAME,required,notEmpty"`
	APIKey       string        `env:"MAPEMBED_API_KEY"`
	Addr         string        `env:"MAPEMBED_ADDR" envDefault:":8080"`
	DBPath       string        `env:"MAPEMBED_DB" envDefault:"./data/mapembed.db"`
	Poll         time.Duration `env:"MAPEMBED_POLL" envDefault:"1s"`
	HostPoll     time.Duration `env:"MAPEMBED_HOST_POLL" envDefault:"5m"`
	GameAPI      string        `env:"MAPEMBED_GAME_API" envDefault:"https://np.ironhelmet.com/api"`
	WeaponsGuess int           `env:"MAPEMBED_WEAPONS_GUESS" envDefault:"1"`
	OTelEndpoint string        `env:"MAPEMBED_OTEL_ENDPOINT"`

	// DiscordWebhook receives one message per new threat when set.
	DiscordWebhook string `env:"MAPEMBED_DISCORD_WEBHOOK"`
}

func loadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	if c.WeaponsGuess < 0 {
		return c, fmt.Errorf("MAPEMBED_WEAPONS_GUESS must not be negative, got %d", c.WeaponsGuess)
	}
	return c, nil
}
