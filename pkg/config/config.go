package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvConfDir    = "STKGATE_CONF"
	EnvDSN        = "STKGATE_DB_DSN"
	EnvRidianAddr = "STKGATE_RIDIAN_ADDR"
	EnvLogLevel   = "STKGATE_LOG_LEVEL"

	DefaultConfDir = "/etc/stkgate"
	FileName       = "stkgate.yaml"
)

// Config is the read-only gateway configuration. It is loaded once at
// startup and passed by value to every component.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Retry     int             `yaml:"retry"`
	Backend   BackendConfig   `yaml:"ridian"`
	Barcode   BarcodeConfig   `yaml:"barcode"`
	Directory DirectoryConfig `yaml:"directory"`
	LotTrack  EndpointConfig  `yaml:"lottrack"`
	Alert     AlertConfig     `yaml:"alert"`
	LogShip   LogShipConfig   `yaml:"logship"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
	Policy    Policy          `yaml:"policy"`
}

// ListenConfig configures the stocker-facing listeners.
type ListenConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	MaxSessions int           `yaml:"max_sessions"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	ReadSlice   time.Duration `yaml:"read_slice"`
	DrainTime   time.Duration `yaml:"drain_timeout"`
}

// BackendConfig configures the Ridian tag-location client.
type BackendConfig struct {
	Address        string        `yaml:"address"`
	LotEnabled     bool          `yaml:"lot_enabled"`
	ReticleEnabled bool          `yaml:"reticle_enabled"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	IOTimeout      time.Duration `yaml:"io_timeout"`
}

// BarcodeConfig configures the barcode readers.
type BarcodeConfig struct {
	Port          int           `yaml:"port"`
	Timeout       time.Duration `yaml:"timeout"`
	OutputTimeout time.Duration `yaml:"output_timeout"`
}

// DirectoryConfig selects the directory backend.
type DirectoryConfig struct {
	Driver string `yaml:"driver"` // "bolt" or "postgres"
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// EndpointConfig is a TCP collaborator address with a call timeout.
type EndpointConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

// AlertConfig configures operator alert delivery.
type AlertConfig struct {
	EndpointConfig `yaml:",inline"`
	Receiver       string  `yaml:"receiver"`
	PerMinute      float64 `yaml:"per_minute"`
	Burst          int     `yaml:"burst"`
}

// LogShipConfig selects where protocol log records are shipped.
type LogShipConfig struct {
	Sink    string   `yaml:"sink"` // "log", "nats" or "kafka"
	URL     string   `yaml:"url"`
	Brokers []string `yaml:"brokers"`
	Subject string   `yaml:"subject"`
	Buffer  int      `yaml:"buffer"`
}

// AdminConfig configures the HTTP and gRPC admin endpoints.
type AdminConfig struct {
	Address     string `yaml:"address"`
	GRPCAddress string `yaml:"grpc_address"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when a key is absent.
func Default() Config {
	return Config{
		Listen: ListenConfig{
			Port:        7000,
			MaxSessions: 64,
			IdleTimeout: time.Hour,
			ReadSlice:   50 * time.Second,
			DrainTime:   10 * time.Second,
		},
		Retry: 2,
		Backend: BackendConfig{
			LotEnabled:     true,
			ReticleEnabled: true,
			DialTimeout:    5 * time.Second,
			IOTimeout:      10 * time.Second,
		},
		Barcode: BarcodeConfig{
			Port:          9004,
			Timeout:       7 * time.Second,
			OutputTimeout: 10 * time.Second,
		},
		Directory: DirectoryConfig{
			Driver: "bolt",
			Path:   "/var/lib/stkgate",
		},
		LotTrack: EndpointConfig{Timeout: 10 * time.Second},
		Alert: AlertConfig{
			EndpointConfig: EndpointConfig{Timeout: 5 * time.Second},
			PerMinute:      30,
			Burst:          5,
		},
		LogShip: LogShipConfig{
			Sink:    "log",
			Subject: "stkgate.protocol",
			Buffer:  1024,
		},
		Admin: AdminConfig{
			Address: ":7080",
		},
		Log:    LogConfig{Level: "info"},
		Policy: DefaultPolicy(),
	}
}

// Load reads the configuration from the directory named by STKGATE_CONF.
// A .env file in the working directory or the configuration directory is
// loaded first so it can supply the environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	dir := os.Getenv(EnvConfDir)
	if dir == "" {
		dir = DefaultConfDir
	}
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads a YAML configuration file over the defaults and applies
// environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults plus environment
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDSN); v != "" {
		c.Directory.DSN = v
		c.Directory.Driver = "postgres"
	}
	if v := os.Getenv(EnvRidianAddr); v != "" {
		c.Backend.Address = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects configurations the gateway cannot run with.
func (c Config) Validate() error {
	if c.Listen.Port <= 0 || c.Listen.Port+5 > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if c.Listen.MaxSessions <= 0 {
		return fmt.Errorf("listen.max_sessions must be positive")
	}
	if c.Retry <= 0 {
		return fmt.Errorf("retry must be positive")
	}
	if (c.Backend.LotEnabled || c.Backend.ReticleEnabled) && c.Backend.Address == "" {
		return fmt.Errorf("ridian.address is required while a backend flag is enabled")
	}
	switch c.Directory.Driver {
	case "bolt":
		if c.Directory.Path == "" {
			return fmt.Errorf("directory.path is required for the bolt driver")
		}
	case "postgres":
		if c.Directory.DSN == "" {
			return fmt.Errorf("directory.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown directory driver %q", c.Directory.Driver)
	}
	switch c.LogShip.Sink {
	case "log", "nats", "kafka":
	default:
		return fmt.Errorf("unknown logship sink %q", c.LogShip.Sink)
	}
	return nil
}

// StockerAddr is the stocker protocol listen address.
func (c Config) StockerAddr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Host, c.Listen.Port)
}

// OutputAddr is the barcode output-reader listen address (port+3).
func (c Config) OutputAddr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Host, c.Listen.Port+3)
}

// HealthAddr is the L4 health listen address (port+5).
func (c Config) HealthAddr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Host, c.Listen.Port+5)
}
