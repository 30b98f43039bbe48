package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/assistant"
	"github.com/velikandr/analyst-bot/internal/bot"
	"github.com/velikandr/analyst-bot/internal/news"
	"github.com/velikandr/analyst-bot/internal/report"
	"github.com/velikandr/analyst-bot/internal/storage"
	"github.com/velikandr/analyst-bot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err), zap.String("dir", cfg.Data.Dir))
	}

	// Initialize storage; a schema failure here is fatal so the bot never
	// serves traffic against an inconsistent database.
	var store storage.Storage
	switch cfg.Database.Driver {
	case "memory":
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	case "postgres":
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.Database.Path))
		store, err = storage.NewSQLiteStorage(cfg.Database.Path, logger)
	}
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// Initialize report engine and make sure the demo dataset exists
	reports := report.New(cfg.Data.CSVPath(), logger)
	if err := reports.EnsureDemoCSV(); err != nil {
		logger.Fatal("Failed to prepare demo dataset", zap.Error(err))
	}

	// Initialize external service adapters
	assist := assistant.New(
		cfg.Assistant.APIKey,
		cfg.Assistant.BaseURL,
		cfg.Assistant.Model,
		cfg.Assistant.MaxTokens,
		cfg.Assistant.Timeout,
		logger,
	)
	newsClient := news.New(
		cfg.News.APIKey,
		cfg.News.BaseURL,
		cfg.News.Language,
		cfg.News.Timeout,
		logger,
	)

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, store, reports, assist, newsClient, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	logger.Info("Database and demo dataset ready")
	logger.Info("Starting analyst bot")

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
