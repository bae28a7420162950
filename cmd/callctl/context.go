package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"call-analytics-go/internal/app"
	"call-analytics-go/internal/config"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/storage"
)

type commandContext struct {
	envFile *string
	dbPath  *string
	jsonOut *bool

	configOnce sync.Once
	config     *config.Config
}

func newCommandContext(envFile, dbPath *string, jsonOut *bool) *commandContext {
	return &commandContext{envFile: envFile, dbPath: dbPath, jsonOut: jsonOut}
}

func (c *commandContext) ensureConfig() *config.Config {
	c.configOnce.Do(func() {
		if c.envFile != nil && *c.envFile != "" {
			_ = godotenv.Load(*c.envFile)
		}
		cfg := config.Load()
		if c.dbPath != nil && strings.TrimSpace(*c.dbPath) != "" {
			cfg.DatabasePath = strings.TrimSpace(*c.dbPath)
		}
		c.config = cfg
	})
	return c.config
}

func (c *commandContext) json() bool {
	return c.jsonOut != nil && *c.jsonOut
}

// logger writes to stderr so command output stays parseable.
func (c *commandContext) logger() *logger.Logger {
	cfg := c.ensureConfig()
	return logger.NewWithOptions(logger.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Output:      os.Stderr,
	})
}

// withStore opens only the database; read commands need no external services.
func (c *commandContext) withStore(ctx context.Context, fn func(*storage.Store) error) error {
	cfg := c.ensureConfig()
	log := c.logger()
	store, err := storage.Open(ctx, cfg.DatabasePath,
		storage.WithLogger(log.Component("storage")),
		storage.WithMaxRetryTime(cfg.PersistMaxRetryTime),
	)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// withApp builds the full pipeline.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, c.ensureConfig(), c.logger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
