package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/DoyleJ11/matchsync/internal/match"
)

type Config struct {
	AuthorityURL   string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	LogLevel       string
	LogDev         bool
	InspectAddr    string

	PlayerName    string
	PreferredTeam match.Team
	PreferredSlot match.Slot
	MatchID       string

	ListenAddr      string
	StartingEconomy int
	MatchIDLength   int
}

// Load reads an optional .env file, then the process environment. Values
// already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		AuthorityURL: get("AUTHORITY_URL", "ws://localhost:8080/ws"),
		LogLevel:     get("LOG_LEVEL", "info"),
		InspectAddr:  getenv("INSPECT_ADDR"),
		PlayerName:   get("PLAYER_NAME", "player"),
		MatchID:      getenv("MATCH_ID"),
		ListenAddr:   get("LISTEN_ADDR", ":8080"),
	}

	var err error
	if cfg.ConnectTimeout, err = time.ParseDuration(get("CONNECT_TIMEOUT", "20s")); err != nil {
		return Config{}, fmt.Errorf("CONNECT_TIMEOUT: %w", err)
	}
	if cfg.ConnectTimeout <= 0 || cfg.ConnectTimeout > 20*time.Second {
		cfg.ConnectTimeout = 20 * time.Second
	}
	if cfg.RequestTimeout, err = time.ParseDuration(get("REQUEST_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
	}
	if cfg.LogDev, err = strconv.ParseBool(get("LOG_DEV", "false")); err != nil {
		return Config{}, fmt.Errorf("LOG_DEV: %w", err)
	}
	if cfg.StartingEconomy, err = strconv.Atoi(get("STARTING_ECONOMY", "100")); err != nil {
		return Config{}, fmt.Errorf("STARTING_ECONOMY: %w", err)
	}
	if cfg.StartingEconomy < 0 {
		return Config{}, fmt.Errorf("STARTING_ECONOMY: must not be negative, got %d", cfg.StartingEconomy)
	}
	if cfg.MatchIDLength, err = strconv.Atoi(get("MATCH_ID_LENGTH", "6")); err != nil {
		return Config{}, fmt.Errorf("MATCH_ID_LENGTH: %w", err)
	}
	if cfg.MatchIDLength < 4 || cfg.MatchIDLength > 12 {
		return Config{}, fmt.Errorf("MATCH_ID_LENGTH: must be between 4 and 12, got %d", cfg.MatchIDLength)
	}

	if v := getenv("PREFERRED_TEAM"); v != "" {
		t, ok := match.ParseTeam(v)
		if !ok {
			return Config{}, fmt.Errorf("PREFERRED_TEAM: unknown team %q", v)
		}
		cfg.PreferredTeam = t
	}
	if v := getenv("PREFERRED_SLOT"); v != "" {
		s, ok := match.ParseSlot(v)
		if !ok {
			return Config{}, fmt.Errorf("PREFERRED_SLOT: unknown slot %q", v)
		}
		cfg.PreferredSlot = s
	}
	return cfg, nil
}
