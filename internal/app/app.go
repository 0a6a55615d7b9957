// Package app wires the application together: tracing, database pool,
// AI provider, passage store, and the answer pipeline.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libram-ai/libram/internal/config"
	"github.com/libram-ai/libram/internal/log"
	"github.com/libram-ai/libram/internal/provider"
	"github.com/libram-ai/libram/internal/rag"
	"github.com/libram-ai/libram/internal/store"
)

// App is the core application container.
// Construct with Setup; call Close to release resources.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Pool     *pgxpool.Pool
	Provider *provider.Provider
	Passages *store.Passages
	Pipeline *rag.Pipeline

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
