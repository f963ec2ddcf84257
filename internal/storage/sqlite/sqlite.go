// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the only SQLite-specific
// concerns are the in-memory DB and the periodic dump.
package sqlitestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/RogersSierra/extension/internal/database"
	gormstorage "github.com/RogersSierra/extension/internal/storage/gorm"
	"github.com/RogersSierra/extension/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	OutputDir    string // directory receiving one .db file per journey
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	dumpPath string

	stop chan struct{}
	done chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg Config, writer gormstorage.Config, log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSQLite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(db, writer, log),
		db:      db,
		cfg:     cfg,
		log:     log,
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpInterval > 0 {
		b.stop = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, flushes, and writes a last dump.
func (b *Backend) Close() error {
	if b.stop != nil {
		close(b.stop)
		<-b.done
		b.stop = nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.Dump()
}

// StartJourney starts the journey and points dumps at a file named after it.
func (b *Backend) StartJourney(j *core.Journey) error {
	if err := b.Backend.StartJourney(j); err != nil {
		return err
	}

	path := ""
	if b.cfg.OutputDir != "" {
		if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		path = filepath.Join(b.cfg.OutputDir, dumpFileName(j))
	}

	b.mu.Lock()
	b.dumpPath = path
	b.mu.Unlock()
	return nil
}

// EndJourney closes the journey and dumps the final state.
func (b *Backend) EndJourney() error {
	if err := b.Backend.EndJourney(); err != nil {
		return err
	}
	return b.Dump()
}

// DumpPath returns the file the current journey is dumped to.
func (b *Backend) DumpPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

// Dump flushes queued rows and vacuums the database to the dump path.
// Without a journey or output directory it does nothing.
func (b *Backend) Dump() error {
	path := b.DumpPath()
	if path == "" {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}
	return database.DumpToDisk(b.db, path, b.log)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}

func dumpFileName(j *core.Journey) string {
	world := strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_").Replace(j.WorldName)
	if world == "" {
		world = "journey"
	}
	return fmt.Sprintf("%s_%s.db", world, j.StartTime.Format("20060102_150405"))
}
