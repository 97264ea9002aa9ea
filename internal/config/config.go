package config

import (
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/dedup"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

// --- Configuration Structures ---

// Config is the agent's startup configuration. The live print settings are
// seeded from Settings.Defaults and owned by the settings store afterwards.
type Config struct {
	Origin    OriginConfig    `koanf:"origin"`
	Commands  ChannelConfig   `koanf:"commands"`
	Orders    ChannelConfig   `koanf:"orders"`
	Stream    StreamConfig    `koanf:"stream"`
	Reporter  ReporterConfig  `koanf:"reporter"`
	Status    StatusConfig    `koanf:"status"`
	Logging   logger.Config   `koanf:"logging"`
	Settings  SettingsConfig  `koanf:"settings"`
	Discovery DiscoveryConfig `koanf:"discovery"`
}

// OriginConfig identifies the ordering backend and the credentials sent on
// every request.
type OriginConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	Role    string `koanf:"role" validate:"required"`
	Pin     string `koanf:"pin" validate:"required"`
}

// ChannelConfig describes one ingestion pipeline. An empty poll path
// disables the polling backup for that pipeline.
type ChannelConfig struct {
	Enabled        bool          `koanf:"enabled"`
	StreamPath     string        `koanf:"stream_path" validate:"required_if=Enabled true"`
	PollPath       string        `koanf:"poll_path"`
	PollInterval   time.Duration `koanf:"poll_interval" validate:"min=0"`
	PollTimeout    time.Duration `koanf:"poll_timeout" validate:"min=0"`
	StaleAfter     time.Duration `koanf:"stale_after" validate:"min=0"`
	LedgerCapacity int           `koanf:"ledger_capacity" validate:"min=1"`
	PrintSnapshot  bool          `koanf:"print_snapshot"`
}

type StreamConfig struct {
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"min=0"`
	InitialBackoff time.Duration `koanf:"initial_backoff" validate:"min=0"`
	MaxBackoff     time.Duration `koanf:"max_backoff" validate:"gtefield=InitialBackoff"`
}

type ReporterConfig struct {
	ConfirmPath  string        `koanf:"confirm_path" validate:"required"`
	Timeout      time.Duration `koanf:"timeout" validate:"min=0"`
	Workers      int           `koanf:"workers" validate:"min=1,max=64"`
	Buffer       int           `koanf:"buffer" validate:"min=1"`
	Rate         float64       `koanf:"rate" validate:"min=0"`
	Burst        int           `koanf:"burst" validate:"min=1"`
	DrainTimeout time.Duration `koanf:"drain_timeout" validate:"min=0"`
}

// StatusConfig controls the local status server.
type StatusConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Listen         string   `koanf:"listen" validate:"required_if=Enabled true"`
	CORSOrigins    []string `koanf:"cors_origins"`
	RequestsPerMin int      `koanf:"requests_per_min" validate:"min=0"`
}

type SettingsConfig struct {
	Path     string         `koanf:"path"`
	Defaults model.Settings `koanf:"defaults"`
}

type DiscoveryConfig struct {
	Subnet      string        `koanf:"subnet"`
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Workers     int           `koanf:"workers" validate:"min=1"`
	DialTimeout time.Duration `koanf:"dial_timeout" validate:"min=0"`
}

func defaultConfig() *Config {
	return &Config{
		Origin: OriginConfig{
			BaseURL: "http://localhost:8787",
			Role:    "owner",
		},
		Commands: ChannelConfig{
			Enabled:        true,
			StreamPath:     "/api/print/stream",
			PollPath:       "/api/print/queue",
			PollInterval:   10 * time.Second,
			PollTimeout:    10 * time.Second,
			StaleAfter:     90 * time.Second,
			LedgerCapacity: dedup.CommandCapacity,
		},
		Orders: ChannelConfig{
			Enabled:        true,
			StreamPath:     "/realtime/orders/stream",
			PollInterval:   10 * time.Second,
			PollTimeout:    10 * time.Second,
			StaleAfter:     90 * time.Second,
			LedgerCapacity: dedup.OrderCapacity,
		},
		Stream: StreamConfig{
			ReadTimeout:    60 * time.Second,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Reporter: ReporterConfig{
			ConfirmPath:  "/api/print/confirm",
			Timeout:      10 * time.Second,
			Workers:      2,
			Buffer:       1024,
			Rate:         10,
			Burst:        5,
			DrainTimeout: 3 * time.Second,
		},
		Status: StatusConfig{
			Enabled:        true,
			Listen:         "127.0.0.1:8089",
			CORSOrigins:    []string{"*"},
			RequestsPerMin: 120,
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Settings: SettingsConfig{
			Path:     "config/settings.json",
			Defaults: model.DefaultSettings(),
		},
		Discovery: DiscoveryConfig{
			Port:        9100,
			Workers:     50,
			DialTimeout: 500 * time.Millisecond,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config { return defaultConfig() }
