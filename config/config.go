// Package config loads controller settings from defaults, an optional .env file,
// an optional YAML file and the environment
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultGatewayHost    = "http://localhost:6969"
	DefaultGatewayTimeout = 60 * time.Second
	DefaultPollInterval   = time.Second
	DefaultPort           = "/dev/tty.usbserial-0001"
	DefaultBaudRate       = 250000
	DefaultServerAddress  = "localhost:9100"
)

// Config holds all controller settings
type Config struct {
	Gateway GatewayConfig
	Monitor MonitorConfig
	Device  DeviceConfig
	Server  ServerConfig
	Log     LogConfig
}

type GatewayConfig struct {
	Host    string
	Timeout time.Duration
}

type MonitorConfig struct {
	Interval time.Duration
}

// DeviceConfig is the port/baud pair offered when the operator does not pick one
type DeviceConfig struct {
	Port     string
	BaudRate int
}

type ServerConfig struct {
	Address string
}

type LogConfig struct {
	Level  string
	Format string
}

// New returns a viper instance with every default registered and environment
// lookups enabled (gateway.host -> GATEWAY_HOST)
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("gateway.host", DefaultGatewayHost)
	v.SetDefault("gateway.timeout", DefaultGatewayTimeout)
	v.SetDefault("monitor.interval", DefaultPollInterval)
	v.SetDefault("device.port", DefaultPort)
	v.SetDefault("device.baud_rate", DefaultBaudRate)
	v.SetDefault("server.address", DefaultServerAddress)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	return v
}

// Load reads .env (if present), then path (if non-empty), then the environment
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates settings held by v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Gateway: GatewayConfig{
			Host:    strings.TrimRight(v.GetString("gateway.host"), "/"),
			Timeout: v.GetDuration("gateway.timeout"),
		},
		Monitor: MonitorConfig{
			Interval: v.GetDuration("monitor.interval"),
		},
		Device: DeviceConfig{
			Port:     v.GetString("device.port"),
			BaudRate: v.GetInt("device.baud_rate"),
		},
		Server: ServerConfig{
			Address: v.GetString("server.address"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the controller cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.Host == "" {
		errs = append(errs, errors.New("gateway.host must not be empty"))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("gateway.timeout must be positive"))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor.interval must be positive"))
	}
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address must not be empty"))
	}
	if c.Device.BaudRate < 0 {
		errs = append(errs, errors.New("device.baud_rate must not be negative"))
	}
	return errors.Join(errs...)
}
