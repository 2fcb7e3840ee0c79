package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Classifier backends.
const (
	BackendArtifact = "artifact"
	BackendRemote   = "remote"
	BackendClaude   = "claude"
)

// Artifact sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceGitHub   = "github"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Env      string `env:"SUPEROTP_ENV" envDefault:"development"`

	// DecisionDelay is an artificial pause before rendering a form decision.
	DecisionDelay time.Duration `env:"SUPEROTP_DECISION_DELAY" envDefault:"0s"`

	Backend string       `env:"SUPEROTP_BACKEND" envDefault:"artifact"`
	Model   ModelConfig  `envPrefix:"SUPEROTP_MODEL_"`
	Remote  RemoteConfig `envPrefix:"SUPEROTP_REMOTE_"`
	Claude  ClaudeConfig `envPrefix:"SUPEROTP_CLAUDE_"`

	RateLimit RateLimitConfig `envPrefix:"SUPEROTP_RATELIMIT_"`
	TLS       TLSConfig       `envPrefix:"SUPEROTP_TLS_"`

	OTelEndpoint string `env:"SUPEROTP_OTEL_ENDPOINT"`
}

// ModelConfig locates the classifier artifact.
type ModelConfig struct {
	Source string `env:"SOURCE" envDefault:"file"`
	Format string `env:"FORMAT"`

	Path string `env:"PATH" envDefault:"model.json"`

	DatabaseURL string `env:"DATABASE_URL,unset"`
	Migrate     bool   `env:"MIGRATE" envDefault:"false"`
	Name        string `env:"NAME" envDefault:"super-otp"`
	Version     int    `env:"VERSION" envDefault:"0"`

	GitHubOwner   string `env:"GITHUB_OWNER"`
	GitHubRepo    string `env:"GITHUB_REPO"`
	GitHubPath    string `env:"GITHUB_PATH"`
	GitHubRef     string `env:"GITHUB_REF"`
	GitHubToken   string `env:"GITHUB_TOKEN,unset"`
	GitHubBaseURL string `env:"GITHUB_BASE_URL"`
}

// RemoteConfig configures the HTTP inference backend.
type RemoteConfig struct {
	URL        string        `env:"URL"`
	APIKey     string        `env:"API_KEY,unset"`
	Confidence bool          `env:"CONFIDENCE" envDefault:"true"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// ClaudeConfig configures the Bedrock backend.
type ClaudeConfig struct {
	Model string `env:"MODEL" envDefault:"global.anthropic.claude-sonnet-4-5-20250929-v1:0"`
}

// RateLimitConfig bounds prediction requests per client IP.
type RateLimitConfig struct {
	PredictPerMinute int `env:"PREDICT_PER_MINUTE" envDefault:"30"`
	PreviewPerMinute int `env:"PREVIEW_PER_MINUTE" envDefault:"600"`
}

// TLSConfig enables automatic certificates when Domains is set.
type TLSConfig struct {
	Domains []string `env:"DOMAINS" envSeparator:","`
	Email   string   `env:"EMAIL"`
}

// Production reports whether the service runs in production.
func (c Config) Production() bool { return c.Env == "production" }

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendArtifact:
		switch c.Model.Source {
		case SourceFile:
			if c.Model.Path == "" {
				return fmt.Errorf("SUPEROTP_MODEL_PATH is required for the file source")
			}
		case SourcePostgres:
			if c.Model.Name == "" {
				return fmt.Errorf("SUPEROTP_MODEL_NAME is required for the postgres source")
			}
		case SourceGitHub:
			if c.Model.GitHubOwner == "" || c.Model.GitHubRepo == "" || c.Model.GitHubPath == "" {
				return fmt.Errorf("SUPEROTP_MODEL_GITHUB_OWNER, _REPO and _PATH are required for the github source")
			}
		default:
			return fmt.Errorf("unknown model source %q", c.Model.Source)
		}
	case BackendRemote:
		if c.Remote.URL == "" {
			return fmt.Errorf("SUPEROTP_REMOTE_URL is required for the remote backend")
		}
	case BackendClaude:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.DecisionDelay < 0 {
		return fmt.Errorf("SUPEROTP_DECISION_DELAY must not be negative")
	}
	if c.RateLimit.PredictPerMinute <= 0 || c.RateLimit.PreviewPerMinute <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
