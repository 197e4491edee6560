package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Protocol selects the backend endpoint shape.
type Protocol string

const (
	ProtocolClassic Protocol = "classic" // /upload/, /progress/{id}, /cancel/{id}
	ProtocolAPI     Protocol = "api"     // /api/search, /api/status/{id}, DELETE /api/cancel/{id}
)

// ExportStrategy selects how result files are produced.
type ExportStrategy string

const (
	ExportServer ExportStrategy = "server"
	ExportCSV    ExportStrategy = "csv"
	ExportXLSX   ExportStrategy = "xlsx"
)

// Config is the immutable client configuration. Pass it by value.
type Config struct {
	Backend BackendConfig
	Poll    PollConfig
	Export  ExportConfig
	Log     LogConfig
}

type BackendConfig struct {
	BaseURL  string
	Protocol Protocol
	Timeout  time.Duration
	Breaker  BreakerConfig
}

// BreakerConfig tunes the circuit breaker guarding backend calls.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

type PollConfig struct {
	Interval time.Duration
	// MaxFailures is how many consecutive failed polls end the job. 1 means fail-fast.
	MaxFailures int
}

type ExportConfig struct {
	Dir      string
	Strategy ExportStrategy
}

type LogConfig struct {
	Level  string
	Format string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:  "http://localhost:8000",
			Protocol: ProtocolClassic,
			Timeout:  30 * time.Second,
			Breaker:  BreakerConfig{MaxFailures: 5, OpenTimeout: 10 * time.Second},
		},
		Poll:   PollConfig{Interval: 2 * time.Second, MaxFailures: 1},
		Export: ExportConfig{Dir: "./data", Strategy: ExportServer},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.protocol", string(d.Backend.Protocol))
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.breaker.max_failures", d.Backend.Breaker.MaxFailures)
	v.SetDefault("backend.breaker.open_timeout", d.Backend.Breaker.OpenTimeout)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.max_failures", d.Poll.MaxFailures)
	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("export.strategy", string(d.Export.Strategy))
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads an optional .env file, an optional config file and MAPSJOB_* environment variables.
// An empty path means no config file.
func Load(path string) (Config, error) {
	// It's okay if .env doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("mapsjob")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Backend: BackendConfig{
			BaseURL:  strings.TrimRight(v.GetString("backend.base_url"), "/"),
			Protocol: Protocol(strings.ToLower(v.GetString("backend.protocol"))),
			Timeout:  v.GetDuration("backend.timeout"),
			Breaker: BreakerConfig{
				MaxFailures: v.GetUint32("backend.breaker.max_failures"),
				OpenTimeout: v.GetDuration("backend.breaker.open_timeout"),
			},
		},
		Poll: PollConfig{
			Interval:    v.GetDuration("poll.interval"),
			MaxFailures: v.GetInt("poll.max_failures"),
		},
		Export: ExportConfig{
			Dir:      v.GetString("export.dir"),
			Strategy: ExportStrategy(strings.ToLower(v.GetString("export.strategy"))),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if cfg.Poll.MaxFailures < 1 {
		cfg.Poll.MaxFailures = 1
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot run with.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL))
	}
	switch c.Backend.Protocol {
	case ProtocolClassic, ProtocolAPI:
	default:
		errs = append(errs, fmt.Errorf("unsupported backend.protocol: %s", c.Backend.Protocol))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}
	switch c.Export.Strategy {
	case ExportServer, ExportCSV, ExportXLSX:
	default:
		errs = append(errs, fmt.Errorf("unsupported export.strategy: %s", c.Export.Strategy))
	}
	if c.Export.Dir == "" {
		errs = append(errs, errors.New("export.dir is required"))
	}

	return errors.Join(errs...)
}
