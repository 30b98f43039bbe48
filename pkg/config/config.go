package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/velikandr/analyst-bot/internal/errs"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	News      NewsConfig      `mapstructure:"news"`
	Data      DataConfig      `mapstructure:"data"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite, postgres or memory
	Path     string `mapstructure:"path"`   // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type AssistantConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type NewsConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// CSVPath is where the demo dataset lives.
func (d DataConfig) CSVPath() string {
	return filepath.Join(d.Dir, "demo.csv")
}

// Validate checks the values that must be present before startup. API
// credentials are deliberately not required here: their commands fail at
// call time instead.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return &errs.ConfigError{Key: "BOT_TOKEN"}
	}
	return nil
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  "disable",
	}, nil
}

// LoadConfig reads config.yaml (optional) with environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/app.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("assistant.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("assistant.model", "gpt-4.1-mini")
	v.SetDefault("assistant.max_tokens", 800)
	v.SetDefault("assistant.timeout", "15s")
	v.SetDefault("news.base_url", "https://newsapi.org/v2/everything")
	v.SetDefault("news.language", "ru")
	v.SetDefault("news.timeout", "10s")
	v.SetDefault("data.dir", "data")

	// Enable environment variable support
	v.AutomaticEnv()

	// The config file is optional; env variables alone are enough to run.
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("BOT_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENROUTER_API_KEY"); apiKey != "" {
		config.Assistant.APIKey = apiKey
	}
	if apiKey := v.GetString("NEWS_API_KEY"); apiKey != "" {
		config.News.APIKey = apiKey
	}

	return &config, nil
}
