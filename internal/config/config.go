package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds runtime settings for both the Nakama module and the standalone server.
type Config struct {
	CountdownFrom     int           `env:"RPS_COUNTDOWN_FROM"     envDefault:"3"`
	CountdownInterval time.Duration `env:"RPS_COUNTDOWN_INTERVAL" envDefault:"500ms"`
	RoomMaxAge        time.Duration `env:"RPS_ROOM_MAX_AGE"       envDefault:"1h"`
	PurgeInterval     time.Duration `env:"RPS_PURGE_INTERVAL"     envDefault:"1h"`

	Voice VoiceConfig

	// Standalone server only.
	Port      int        `env:"PORT"       envDefault:"3001"`
	ClientURL string     `env:"CLIENT_URL"`
	LogLevel  slog.Level `env:"LOG_LEVEL"  envDefault:"INFO"`
}

// VoiceConfig carries Vivox credentials. Voice tokens are disabled unless all are set.
type VoiceConfig struct {
	Issuer string `env:"VIVOX_ISSUER"`
	Domain string `env:"VIVOX_DOMAIN"`
	Secret string `env:"VIVOX_SECRET"`
}

// FromEnv parses the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromMap parses a key/value map such as Nakama's runtime env. Keys are
// matched case-insensitively; the process environment is ignored.
func FromMap(values map[string]string) (Config, error) {
	environment := make(map[string]string, len(values))
	for k, v := range values {
		environment[strings.ToUpper(k)] = v
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Load reads optional dotenv files into the process environment, then parses it.
// Variables already set take precedence over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// Validate rejects values that would stall the countdown or the janitor.
func (c Config) Validate() error {
	if err := c.CoordinatorSettings().Validate(); err != nil {
		return err
	}
	if c.RoomMaxAge <= 0 {
		return fmt.Errorf("RPS_ROOM_MAX_AGE must be positive, got %s", c.RoomMaxAge)
	}
	if c.PurgeInterval <= 0 {
		return fmt.Errorf("RPS_PURGE_INTERVAL must be positive, got %s", c.PurgeInterval)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	return nil
}

// CoordinatorSettings returns the round timing for app.NewCoordinator.
func (c Config) CoordinatorSettings() app.Settings {
	return app.Settings{
		CountdownFrom:     c.CountdownFrom,
		CountdownInterval: c.CountdownInterval,
	}
}

// VoiceService builds the voice token signer from the Vivox settings.
func (c Config) VoiceService() *app.VoiceService {
	return app.NewVoiceService(c.Voice.Secret, c.Voice.Issuer, c.Voice.Domain)
}

// Addr is the standalone server listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
