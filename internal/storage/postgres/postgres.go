// Package postgres implements the storage.Backend interface on PostgreSQL.
// Writes go through the shared gorm backend; this package only owns the
// connection.
package postgres

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/RogersSierra/extension/internal/config"
	"github.com/RogersSierra/extension/internal/database"
	gormstorage "github.com/RogersSierra/extension/internal/storage/gorm"
	"github.com/RogersSierra/extension/pkg/core"
)

var errNotInitialized = errors.New("postgres backend not initialized")

// Backend connects lazily in Init and then delegates to a gorm backend.
type Backend struct {
	cfg    config.PostgresConfig
	writer gormstorage.Config
	log    zerolog.Logger
	open   func(config.PostgresConfig) (*gorm.DB, error)

	*gormstorage.Backend
}

// New creates a PostgreSQL backend. Nothing is dialed until Init.
func New(cfg config.PostgresConfig, writer gormstorage.Config, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:    cfg,
		writer: writer,
		log:    log,
		open:   database.OpenPostgres,
	}
}

// Init connects, migrates and starts the batch writer.
func (b *Backend) Init() error {
	db, err := b.open(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.log.Info().Str("host", b.cfg.Host).Str("database", b.cfg.Database).Msg("Connected to database")

	b.Backend = gormstorage.New(db, b.writer, b.log)
	return b.Backend.Init()
}

// Close flushes and stops the writer. Safe before Init.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}

// StartJourney delegates to the gorm backend.
func (b *Backend) StartJourney(j *core.Journey) error {
	if b.Backend == nil {
		return errNotInitialized
	}
	return b.Backend.StartJourney(j)
}
