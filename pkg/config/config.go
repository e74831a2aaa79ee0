// Package config loads adapter configuration from a file with environment
// overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
)

// Config is the on-disk configuration shape.
type Config struct {
	Exchange *ExchangeConfig `mapstructure:"exchange"`
	Metrics  *MetricsConfig  `mapstructure:"metrics"`
}

// ExchangeConfig configures the exchange connection and credentials.
type ExchangeConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Passphrase string `mapstructure:"passphrase"`
	AuthToken  string `mapstructure:"auth_token"`

	RestURL string `mapstructure:"rest_url"`
	WSUrl   string `mapstructure:"ws_url"`

	HTTPTimeoutSeconds   int    `mapstructure:"http_timeout_seconds"`
	MaxRequestsPerSecond int    `mapstructure:"max_requests_per_second"`
	LogLevel             string `mapstructure:"log_level"`
	Debug                bool   `mapstructure:"debug"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LoadConfig reads a config file and applies COINBASE_ADAPTER_* environment
// overrides, e.g. COINBASE_ADAPTER_EXCHANGE_API_KEY.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	v.SetEnvPrefix("COINBASE_ADAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("exchange.http_timeout_seconds", 15)
	v.SetDefault("exchange.max_requests_per_second", 10)
	v.SetDefault("exchange.log_level", "info")
	v.SetDefault("metrics.listen", ":9102")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ExchangeOptions converts the file configuration into runtime options.
func (c *Config) ExchangeOptions() *interfaces.ExchangeOptions {
	options := interfaces.NewExchangeOptions()
	if c.Exchange == nil {
		return options
	}

	options.Credentials = interfaces.Credentials{
		Key:        c.Exchange.APIKey,
		Secret:     c.Exchange.APISecret,
		Passphrase: c.Exchange.Passphrase,
		AuthToken:  c.Exchange.AuthToken,
	}
	options.RestURL = c.Exchange.RestURL
	options.WSURL = c.Exchange.WSUrl
	if c.Exchange.HTTPTimeoutSeconds > 0 {
		options.HTTPTimeout = time.Duration(c.Exchange.HTTPTimeoutSeconds) * time.Second
	}
	if c.Exchange.MaxRequestsPerSecond > 0 {
		options.MaxRequestsPerSecond = c.Exchange.MaxRequestsPerSecond
	}
	if c.Exchange.LogLevel != "" {
		options.LogLevel = c.Exchange.LogLevel
	}
	options.Debug = c.Exchange.Debug
	return options
}
