package command

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-revival/internal/lifecycle"
	"github.com/pixil98/go-revival/internal/logging"
	"golang.org/x/crypto/bcrypt"
)

const (
	envPrefix           = "REVIVAL_"
	defaultTickInterval = 50 * time.Millisecond
)

type Config struct {
	TickInterval      string           `json:"tick_interval" env:"TICK_INTERVAL"`
	Storage           StorageConfig    `json:"storage" envPrefix:"STORAGE_"`
	Worlds            WorldsConfig     `json:"worlds" envPrefix:"WORLDS_"`
	Nats              NatsConfig       `json:"nats" envPrefix:"NATS_"`
	Identity          IdentityConfig   `json:"identity" envPrefix:"IDENTITY_"`
	Revival           RevivalConfig    `json:"revival"`
	Listeners         []ListenerConfig `json:"listeners"`
	AdminPasswordHash string           `json:"admin_password_hash" env:"ADMIN_PASSWORD_HASH"`
	Gateway           GatewayConfig    `json:"gateway" envPrefix:"GATEWAY_"`
	Logging           logging.Config   `json:"logging" envPrefix:"LOG_"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.TickInterval != "" {
		d, err := time.ParseDuration(c.TickInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing tick_interval: %w", err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("tick_interval must be positive"))
		}
	}

	for i, l := range c.Listeners {
		err := l.validate()
		if err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
	}

	if c.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.AdminPasswordHash)); err != nil {
			el.Add(fmt.Errorf("admin_password_hash: %w", err))
		}
	}

	el.Add(c.Storage.validate())
	el.Add(c.Worlds.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Identity.validate())
	el.Add(c.Revival.validate())
	el.Add(c.Gateway.validate())
	el.Add(c.Logging.Validate())

	return el.Err()
}

// ApplyEnv overrides loaded values from REVIVAL_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) tickInterval() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil || d <= 0 {
		return defaultTickInterval
	}
	return d
}

type RevivalConfig struct {
	SettingsPath string `json:"settings_path" env:"SETTINGS_PATH"`
}

func (c *RevivalConfig) validate() error {
	if _, err := lifecycle.LoadSettings(c.SettingsPath); err != nil {
		return fmt.Errorf("revival: %w", err)
	}
	return nil
}

type GatewayConfig struct {
	Addr  string `json:"addr" env:"ADDR"`
	Token string `json:"token" env:"TOKEN"`
}

func (c *GatewayConfig) validate() error {
	if c.Addr != "" && c.Token == "" {
		return fmt.Errorf("gateway: token is required when addr is set")
	}
	return nil
}
