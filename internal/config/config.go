package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RandomizerUniform と RandomizerBag は RANDOMIZER に指定できる値です。
const (
	RandomizerUniform = "uniform"
	RandomizerBag     = "bag"
)

// Config はサーバー起動時に読み込む設定値です。
type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	BypassAuth     bool
	AllowedOrigins []string

	TickInterval        time.Duration
	ClearDuration       time.Duration
	TetrisClearDuration time.Duration
	AutosaveInterval    time.Duration
	Randomizer          string
}

var defaultAllowedOrigins = []string{"http://localhost:3000"}

// Load は .env (本番以外) と環境変数から設定を読み込みます。
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("warning: Error loading .env file (this is fine in production): %v", err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv は getenv から設定を組み立てます。テストでは map を渡します。
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:        getenv("PORT"),
		DatabaseURL: getenv("DATABASE_URL"),
		JWTSecret:   getenv("JWT_SECRET"),
		BypassAuth:  getenv("BYPASS_AUTH") == "true",
		Randomizer:  strings.ToLower(strings.TrimSpace(getenv("RANDOMIZER"))),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	cfg.AllowedOrigins = splitList(getenv("ALLOWED_ORIGINS"))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = defaultAllowedOrigins
	}

	switch cfg.Randomizer {
	case "":
		cfg.Randomizer = RandomizerUniform
	case RandomizerUniform, RandomizerBag:
	default:
		return nil, fmt.Errorf("RANDOMIZER must be %q or %q, got %q", RandomizerUniform, RandomizerBag, cfg.Randomizer)
	}

	durations := []struct {
		key  string
		def  int
		dest *time.Duration
	}{
		{"TICK_INTERVAL_MS", 16, &cfg.TickInterval},
		{"CLEAR_DURATION_MS", 400, &cfg.ClearDuration},
		{"TETRIS_CLEAR_DURATION_MS", 480, &cfg.TetrisClearDuration},
		{"AUTOSAVE_INTERVAL_MS", 2000, &cfg.AutosaveInterval},
	}
	for _, d := range durations {
		ms, err := parseMillis(getenv(d.key), d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = ms
	}

	return cfg, nil
}

func parseMillis(raw string, def int) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
