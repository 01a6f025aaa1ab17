package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"skate-match-system/engine"
	"skate-match-system/utils"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"5200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	ServiceToken   string   `env:"GAME_SERVICE_TOKEN"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	GameWord          string        `env:"GAME_WORD" envDefault:"SKATE"`
	ReplyWindow       time.Duration `env:"REPLY_WINDOW" envDefault:"24h"`
	CommitMaxAttempts int           `env:"COMMIT_MAX_ATTEMPTS" envDefault:"4"`
	BackoffInitial    time.Duration `env:"COMMIT_BACKOFF_INITIAL" envDefault:"10ms"`
	BackoffMax        time.Duration `env:"COMMIT_BACKOFF_MAX" envDefault:"200ms"`

	SweepEnabled   bool          `env:"SWEEP_ENABLED" envDefault:"true"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SweepBatchSize int           `env:"SWEEP_BATCH_SIZE" envDefault:"100"`

	R2            utils.R2Config
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:5200"`
	MaxVideoBytes int64  `env:"MAX_VIDEO_BYTES" envDefault:"104857600"`

	PushServiceURL     string `env:"PUSH_SERVICE_URL"`
	IdentityServiceURL string `env:"IDENTITY_SERVICE_URL"`
	OTelEndpoint       string `env:"OTEL_ENDPOINT"`
}

// Load reads .env (when present) and then the environment. Variables that
// are already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres, sqlite or memory, got %q", c.DatabaseDriver))
	}
	if c.DatabaseDriver != "memory" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if _, err := engine.NewWord(c.GameWord); err != nil {
		errs = append(errs, err)
	}
	if c.ReplyWindow <= 0 {
		errs = append(errs, errors.New("REPLY_WINDOW must be positive"))
	}
	if c.CommitMaxAttempts < 3 || c.CommitMaxAttempts > 5 {
		errs = append(errs, fmt.Errorf("COMMIT_MAX_ATTEMPTS must be between 3 and 5, got %d", c.CommitMaxAttempts))
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		errs = append(errs, errors.New("COMMIT_BACKOFF_INITIAL must be positive and not above COMMIT_BACKOFF_MAX"))
	}
	if c.SweepEnabled && c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// Word returns the validated game word.
func (c Config) Word() engine.Word {
	w, err := engine.NewWord(c.GameWord)
	if err != nil {
		return engine.DefaultWord
	}
	return w
}
