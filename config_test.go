package main

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MAPEMBED_GAME", "42")

	c, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.GameNumber != "42" || c.Addr != ":8080" || c.Poll != time.Second || c.HostPoll != 5*time.Minute {
		t.Errorf("defaults: %+v", c)
	}
	if c.DBPath != "./data/mapembed.db" || c.WeaponsGuess != 1 || c.OTelEndpoint != "" {
		t.Errorf("defaults: %+v", c)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing game", map[string]string{"MAPEMBED_GAME": ""}},
		{"bad duration", map[string]string{"MAPEMBED_GAME": "42", "MAPEMBED_POLL": "soon"}},
		{"negative weapons", map[string]string{"MAPEMBED_GAME": "42", "MAPEMBED_WEAPONS_GUESS": "-2"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := loadConfig(); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
