// -- cmd/components.go --
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/internal/browser"
	"github.com/Badis-tech/autoapply/internal/browser/cdp"
	"github.com/Badis-tech/autoapply/internal/config"
	"github.com/Badis-tech/autoapply/internal/engine"
	"github.com/Badis-tech/autoapply/internal/store"
)

// components bundles everything a command needs to run engine operations.
type components struct {
	Engine  *engine.Engine
	manager *browser.Manager
	pool    *pgxpool.Pool
	logger  *zap.Logger
}

// initializeComponents launches the browser, connects the configured store,
// and wires the engine. Shutdown must be called on every path once this
// returns without error.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	manager, err := browser.NewManager(ctx, logger, cfg, cdp.NewPageSession)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	c := &components{manager: manager, logger: logger}

	repo, err := c.initializeRepository(ctx, cfg, logger)
	if err != nil {
		c.Shutdown(ctx)
		return nil, err
	}

	c.Engine = engine.New(cfg, logger, manager, repo)
	return c, nil
}

// initializeRepository picks PostgreSQL when a DSN is configured and falls
// back to the in-memory store for single-shot runs.
func (c *components) initializeRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Repository, error) {
	if cfg.Database.DSN == "" {
		logger.Info("No database configured; using in-memory store")
		return store.NewMemory(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.pool = pool

	pg, err := store.NewPostgres(ctx, pool, logger)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

// Shutdown releases the browser and the database pool.
func (c *components) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if c.manager != nil {
		if err := c.manager.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}
	if c.pool != nil {
		c.pool.Close()
	}
}
