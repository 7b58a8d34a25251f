package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM    LLMConfig
	Server ServerConfig
	Store  StoreConfig
	Market MarketConfig
	Log    LogConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// StoreConfig holds the embedded database configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MarketConfig holds market-data provider configuration
type MarketConfig struct {
	FinnhubKey string `mapstructure:"finnhub_key"`
	FinnhubURL string `mapstructure:"finnhub_url"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml, or from the file named by
// the CONFIG_PATH environment variable when set.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("store.path", filepath.Join("data", "fincoach.db"))
	viper.SetDefault("market.finnhub_url", "https://finnhub.io/api/v1")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
