package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	Alpaca   Alpaca   `mapstructure:"alpaca"`
	Trading  Trading  `mapstructure:"trading"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the ledger database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Alpaca holds the credentials and limits for the Alpaca Data API, used only
// for live valuation of current holdings. Leaving the keys empty disables the
// live price feed; the ledger itself never needs it.
type Alpaca struct {
	KeyID          string  `mapstructure:"key_id"`
	SecretKey      string  `mapstructure:"secret_key"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Trading holds the ledger behavior settings.
type Trading struct {
	AllowFractionalShares bool `mapstructure:"allow_fractional_shares"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "pair-trades.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("alpaca.rate_limit", 10) // requests per second
	viper.SetDefault("alpaca.rate_limit_burst", 5)
	viper.SetDefault("trading.allow_fractional_shares", false)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
