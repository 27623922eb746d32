package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the application's top-level configuration.
type Config struct {
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	BotEngine BotEngineConfig `mapstructure:"bot_engine"`
}

// BotEngineConfig configures the bot lifecycle engine surfaces: its own
// admin HTTP/gRPC ports, billing behavior, webhook delivery, and the
// credential-at-rest encryption key.
type BotEngineConfig struct {
	HTTP     BotEngineHTTPConfig `mapstructure:"http"`
	GRPCPort int                 `mapstructure:"grpc_port"`
	Billing  BillingConfig       `mapstructure:"billing"`
	Webhook  WebhookConfig       `mapstructure:"webhook"`
	Crypto   CryptoConfig        `mapstructure:"crypto"`
	Alert    AlertConfig         `mapstructure:"alert"`
}

type BotEngineHTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// BillingConfig toggles whether post-meeting transitions book credit
// deductions at all; disabled by default so self-hosted deployments with no
// billing concept never touch the ledger.
type BillingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WebhookConfig holds delivery-retry settings. webhook.Dispatcher does not
// read them; it uses its own MaxDeliveryAttempts and RetryBaseWait constants.
type WebhookConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryBaseWait time.Duration `mapstructure:"retry_base_wait"`
}

// CryptoConfig carries the base64-encoded 32-byte AES-256 key used to seal
// credential blobs (transcription provider keys, OAuth tokens).
type CryptoConfig struct {
	KeyBase64 string `mapstructure:"key_base64"`
}

// AlertConfig configures the operator fatal-error notification sink.
type AlertConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	SiteDomain      string `mapstructure:"site_domain"`
}

// GatewayConfig configures the process's own listen address, independent of
// the bot engine's dedicated HTTP/gRPC ports.
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // local, production
}

// DatabaseConfig selects the GORM dialector and DSN.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HeartbeatConfig holds settings for a stale-bot sweep loop (separate from
// the per-bot heartbeat persistence in internal/domain/heartbeat). No
// component in this repository reads them.
type HeartbeatConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Interval int  `mapstructure:"interval"` // seconds between stale-bot sweeps
}

// Load reads config.yaml (global then project-local) and applies
// environment overrides under the BOTENGINE_ prefix.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".bot-engine")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("BOTENGINE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 18789)
	v.SetDefault("gateway.mode", "local")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "bot-engine.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("heartbeat.enabled", true)
	v.SetDefault("heartbeat.interval", 30)

	v.SetDefault("bot_engine.http.host", "0.0.0.0")
	v.SetDefault("bot_engine.http.port", 8081)
	v.SetDefault("bot_engine.http.mode", "local")
	v.SetDefault("bot_engine.grpc_port", 50061)
	v.SetDefault("bot_engine.billing.enabled", false)
	v.SetDefault("bot_engine.webhook.max_attempts", 6)
	v.SetDefault("bot_engine.webhook.retry_base_wait", "2s")
}
