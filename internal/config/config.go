package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/0xV8/orderbuddy-main/internal/receipt"
)

// Duration reads and writes durations as strings such as "10s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

// --- Configuration Structures ---

type Config struct {
	Environment  string `json:"environment"`
	APIKey       string `json:"apiKey"`
	ApiUrl       string `json:"apiUrl"`
	WsUrl        string `json:"wsUrl"`
	HTTPAddr     string `json:"httpAddr"`
	PrintersFile string `json:"printersFile"`

	ReconnectDelay Duration `json:"reconnectDelay"`

	Guard     GuardConfig     `json:"guard"`
	Printer   PrinterConfig   `json:"printer"`
	Receipt   ReceiptConfig   `json:"receipt"`
	Raster    RasterConfig    `json:"raster"`
	Kafka     KafkaConfig     `json:"kafka"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

type GuardConfig struct {
	Backend    string   `json:"backend"` // memory or redis
	Window     Duration `json:"window"`
	MaxEntries int      `json:"maxEntries"`
	RedisURL   string   `json:"redisUrl"`
	KeyPrefix  string   `json:"keyPrefix"`
	Policy     string   `json:"policy"`
}

type PrinterConfig struct {
	ConnectTimeout Duration `json:"connectTimeout"`
	WriteTimeout   Duration `json:"writeTimeout"`
	IdleTimeout    Duration `json:"idleTimeout"`
	SettleDelay    Duration `json:"settleDelay"`
	QueueSize      int      `json:"queueSize"`
	Retries        int      `json:"retries"`
	RetryBase      Duration `json:"retryBase"`
}

type ReceiptConfig struct {
	Columns  int    `json:"columns"`
	CodePage string `json:"codePage"`
	Currency string `json:"currency"`
	Brand    string `json:"brand"`
	MenuURL  string `json:"menuUrl"`
	Timezone string `json:"timezone"`
}

type RasterConfig struct {
	Enabled      bool   `json:"enabled"`
	Width        int    `json:"width"`
	TemplatePath string `json:"templatePath"`
	ChromePath   string `json:"chromePath"`
}

type KafkaConfig struct {
	Brokers     string `json:"brokers"`
	Topic       string `json:"topic"`
	GroupID     string `json:"groupId"`
	EventsTopic string `json:"eventsTopic"`
}

type TelemetryConfig struct {
	URL       string `json:"url"`
	QueueSize int    `json:"queueSize"`
}

func Default() *Config {
	return &Config{
		Environment:    "production",
		ApiUrl:         "https://api.orderbuddyapp.com",
		WsUrl:          "wss://ws.orderbuddyapp.com/agent",
		HTTPAddr:       "127.0.0.1:8080",
		PrintersFile:   "config/printers.json",
		ReconnectDelay: Duration(5 * time.Second),
		Guard: GuardConfig{
			Backend:    "memory",
			Window:     Duration(2 * time.Minute),
			MaxEntries: 10000,
			KeyPrefix:  "print:guard:",
			Policy:     "strict",
		},
		Printer: PrinterConfig{
			ConnectTimeout: Duration(10 * time.Second),
			WriteTimeout:   Duration(10 * time.Second),
			IdleTimeout:    Duration(5 * time.Minute),
			SettleDelay:    Duration(500 * time.Millisecond),
			QueueSize:      32,
			Retries:        2,
			RetryBase:      Duration(250 * time.Millisecond),
		},
		Receipt: ReceiptConfig{
			Columns:  48,
			CodePage: "cp858",
			Brand:    "OrderBuddy",
			MenuURL:  "https://order.orderbuddyapp.com/menus",
		},
		Raster: RasterConfig{Width: 576},
		Kafka: KafkaConfig{
			Topic:       "print-requests",
			GroupID:     "print-agent",
			EventsTopic: "print-events",
		},
		Telemetry: TelemetryConfig{QueueSize: 256},
	}
}

// Load reads the JSON config file, creating it with defaults when it does
// not exist, then applies .env and environment overrides.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(configFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := Save(configFile, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configFile, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(configFile string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configFile, data, 0644)
}

func (c *Config) Validate() error {
	switch c.Guard.Backend {
	case "memory":
	case "redis":
		if c.Guard.RedisURL == "" {
			return errors.New("guard.redisUrl is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown guard backend %q", c.Guard.Backend)
	}
	if c.Guard.Window <= 0 {
		return errors.New("guard.window must be positive")
	}
	if n := c.Receipt.Columns; n < receipt.MinColumns || n > receipt.MaxColumns {
		return fmt.Errorf("receipt.columns must be between %d and %d", receipt.MinColumns, receipt.MaxColumns)
	}
	if c.Printer.Retries < 0 {
		return errors.New("printer.retries must not be negative")
	}
	if c.Receipt.Timezone != "" {
		if _, err := time.LoadLocation(c.Receipt.Timezone); err != nil {
			return fmt.Errorf("receipt.timezone: %w", err)
		}
	}
	return nil
}

// Location is the zone receipt timestamps are printed in.
func (c *Config) Location() *time.Location {
	if c.Receipt.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Receipt.Timezone)
	if err != nil {
		return nil
	}
	return loc
}
