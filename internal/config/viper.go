// Package config provides Viper-based hierarchical configuration management.
package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Ledger struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"ledger" yaml:"ledger"`

	Mappings struct {
		Directory string `mapstructure:"directory" yaml:"directory"`
	} `mapstructure:"mappings" yaml:"mappings"`

	CSV struct {
		Delimiter        string `mapstructure:"delimiter" yaml:"delimiter"`
		DecimalSeparator string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
		DefaultCurrency  string `mapstructure:"default_currency" yaml:"default_currency"`
	} `mapstructure:"csv" yaml:"csv"`

	Suggestion struct {
		MinConfidence     float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
		PromoteConfidence float64 `mapstructure:"promote_confidence" yaml:"promote_confidence"`
		BatchLimit        int     `mapstructure:"batch_limit" yaml:"batch_limit"`
	} `mapstructure:"suggestion" yaml:"suggestion"`
}

// InitializeConfig initializes Viper configuration with hierarchical
// loading: defaults, then config file, then environment variables.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.bankrecon")
	v.AddConfigPath(".bankrecon")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BANKRECON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Continue with defaults and env vars; a broken file is not fatal.
			Logger.Warnf("Error reading config file %s: %v", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("ledger.path", "bankrecon.db")
	v.SetDefault("mappings.directory", ".bankrecon/mappings")

	v.SetDefault("csv.delimiter", ";")
	v.SetDefault("csv.decimal_separator", ",")
	v.SetDefault("csv.default_currency", "EUR")

	v.SetDefault("suggestion.min_confidence", 0.4)
	v.SetDefault("suggestion.promote_confidence", 0.6)
	v.SetDefault("suggestion.batch_limit", 200)
}

func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", config.Log.Level)
	}
	if config.Suggestion.MinConfidence < 0 || config.Suggestion.MinConfidence > 1 {
		return fmt.Errorf("suggestion.min_confidence must be within [0, 1]")
	}
	if config.Suggestion.PromoteConfidence < config.Suggestion.MinConfidence {
		return fmt.Errorf("suggestion.promote_confidence must not be below min_confidence")
	}
	if config.Suggestion.BatchLimit <= 0 {
		return fmt.Errorf("suggestion.batch_limit must be positive")
	}
	return nil
}
