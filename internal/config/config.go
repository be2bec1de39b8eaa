package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds ripple configuration.
type Config struct {
	Dune   DuneConfig   `toml:"dune"`
	Graph  GraphConfig  `toml:"graph"`
	Layout LayoutConfig `toml:"layout"`
	View   ViewConfig   `toml:"view"`
	Serve  ServeConfig  `toml:"serve"`
	Relay  RelayConfig  `toml:"relay"`
	Log    LogConfig    `toml:"log"`
}

// DuneConfig controls the query-execution client.
type DuneConfig struct {
	BaseURL        string   `toml:"base_url" validate:"required,url"`
	QueryID        string   `toml:"query_id" validate:"required,numeric"`
	ParamName      string   `toml:"param_name" validate:"required"`
	APIKeyEnv      string   `toml:"api_key_env"`
	PollInterval   Duration `toml:"poll_interval"`
	MaxPolls       int      `toml:"max_polls" validate:"gte=0"` // 0 = unbounded
	Timeout        Duration `toml:"timeout"`                    // 0 = no deadline
	RequestTimeout Duration `toml:"request_timeout"`            // per HTTP call
}

// GraphConfig controls model construction.
type GraphConfig struct {
	HubMode string `toml:"hub_mode" validate:"oneof=append dedup"`
}

// LayoutConfig controls the force simulation.
type LayoutConfig struct {
	LinkDistance    float64  `toml:"link_distance" validate:"gt=0"`
	Charge          float64  `toml:"charge" validate:"lt=0"`
	AlphaMin        float64  `toml:"alpha_min" validate:"gt=0,lt=1"`
	VelocityDecay   float64  `toml:"velocity_decay" validate:"gt=0,lte=1"`
	DragAlphaTarget float64  `toml:"drag_alpha_target" validate:"gte=0,lte=1"`
	TickInterval    Duration `toml:"tick_interval"`
	MaxTicks        int      `toml:"max_ticks" validate:"gt=0"`
	Width           float64  `toml:"width" validate:"gt=0"`  // fallback viewport
	Height          float64  `toml:"height" validate:"gt=0"` // fallback viewport
	Seed            int64    `toml:"seed"`
}

// ViewConfig controls the zoom behavior.
type ViewConfig struct {
	MinZoom float64 `toml:"min_zoom" validate:"gt=0"`
	MaxZoom float64 `toml:"max_zoom" validate:"gtfield=MinZoom"`
}

// ServeConfig controls the live graph server.
type ServeConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

// RelayConfig controls the credential relay.
type RelayConfig struct {
	Addr     string   `toml:"addr" validate:"required"`
	Upstream string   `toml:"upstream" validate:"required,url"`
	Queries  []string `toml:"queries" validate:"dive,numeric"` // allowed query ids; empty = dune.query_id
	Rate     float64  `toml:"rate" validate:"gt=0"`            // upstream requests per second
	Burst    int      `toml:"burst" validate:"gt=0"`
	LogFile  string   `toml:"log_file"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// Duration is a time.Duration that reads and writes as a string ("2s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Dune: DuneConfig{
			BaseURL:        "https://api.dune.com/api/v1",
			QueryID:        "4617489",
			ParamName:      "eth_address",
			APIKeyEnv:      "DUNE_API_KEY",
			PollInterval:   Duration{2 * time.Second},
			MaxPolls:       150,
			Timeout:        Duration{5 * time.Minute},
			RequestTimeout: Duration{30 * time.Second},
		},
		Graph: GraphConfig{HubMode: "append"},
		Layout: LayoutConfig{
			LinkDistance:    150,
			Charge:          -800,
			AlphaMin:        0.001,
			VelocityDecay:   0.4,
			DragAlphaTarget: 0.3,
			TickInterval:    Duration{16 * time.Millisecond},
			MaxTicks:        600,
			Width:           960,
			Height:          600,
			Seed:            1,
		},
		View:  ViewConfig{MinZoom: 0.5, MaxZoom: 5},
		Serve: ServeConfig{Addr: ":4779"},
		Relay: RelayConfig{
			Addr:     ":4780",
			Upstream: "https://api.dune.com",
			Rate:     2,
			Burst:    4,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// ConfigDir returns the ripple config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ripple")
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file over the defaults. A missing file is not an
// error. A .env file in the working directory is loaded into the process
// environment first, without overriding variables that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", Path(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Dune.PollInterval.Duration <= 0 {
		return fmt.Errorf("config: dune.poll_interval must be positive")
	}
	if c.Dune.Timeout.Duration < 0 || c.Dune.RequestTimeout.Duration < 0 {
		return fmt.Errorf("config: dune timeouts cannot be negative")
	}
	if c.Layout.TickInterval.Duration <= 0 {
		return fmt.Errorf("config: layout.tick_interval must be positive")
	}
	return nil
}

// APIKey returns the Dune API key from the environment, or "".
func (c *Config) APIKey() string {
	if c.Dune.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Dune.APIKeyEnv)
}

// AllowedQueries returns the query ids the relay forwards.
func (c *Config) AllowedQueries() []string {
	if len(c.Relay.Queries) > 0 {
		return c.Relay.Queries
	}
	return []string{c.Dune.QueryID}
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// EnsureExists creates the config file with defaults if it doesn't exist.
func EnsureExists() error {
	if _, err := os.Stat(Path()); err == nil {
		return nil // already exists
	}
	return Save(Default())
}
