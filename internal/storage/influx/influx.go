// Package influxstorage writes journeys to InfluxDB as time series: one
// point per sample and one per event.
package influxstorage

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/RogersSierra/extension/internal/influx"
	"github.com/RogersSierra/extension/internal/storage"
	"github.com/RogersSierra/extension/pkg/core"
)

// Backend implements storage.Backend on an influx.Manager.
type Backend struct {
	manager *influx.Manager
	bucket  string
	log     zerolog.Logger

	mu      sync.RWMutex
	journey *core.Journey
	trains  map[string]bool
}

// New creates a backend writing into bucket.
func New(manager *influx.Manager, bucket string, log zerolog.Logger) *Backend {
	return &Backend{
		manager: manager,
		bucket:  bucket,
		log:     log.With().Str("backend", "influx").Logger(),
		trains:  make(map[string]bool),
	}
}

// Init connects the manager.
func (b *Backend) Init() error {
	return b.manager.Connect(context.Background())
}

// Close flushes and closes the manager.
func (b *Backend) Close() error {
	return b.manager.Close()
}

func (b *Backend) StartJourney(j *core.Journey) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journey = j
	b.trains = make(map[string]bool)
	b.log.Info().Str("journey", j.ID).Str("world", j.WorldName).Msg("Journey started")
	return nil
}

func (b *Backend) EndJourney() error {
	b.mu.Lock()
	if b.journey == nil {
		b.mu.Unlock()
		return storage.ErrNoJourney
	}
	id := b.journey.ID
	b.journey = nil
	b.mu.Unlock()

	b.log.Info().Str("journey", id).Msg("Journey ended")
	return b.manager.Flush()
}

// AddTrain only registers the id; influx has no train table.
func (b *Backend) AddTrain(t *core.TrainInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.journey == nil {
		return storage.ErrNoJourney
	}
	b.trains[t.ID] = true
	return nil
}

// Trains returns how many trains joined the current journey.
func (b *Backend) Trains() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.trains)
}

// RecordSample drops samples of unregistered trains.
func (b *Backend) RecordSample(s *core.TrainSample) error {
	b.mu.RLock()
	j, known := b.journey, b.trains[s.TrainID]
	b.mu.RUnlock()
	if j == nil {
		return storage.ErrNoJourney
	}
	if !known {
		return nil
	}
	return b.manager.WritePoint(b.bucket, influx.SamplePoint(j, s))
}

func (b *Backend) RecordEvent(e *core.TrainEvent) error {
	b.mu.RLock()
	j := b.journey
	b.mu.RUnlock()
	if j == nil {
		return storage.ErrNoJourney
	}
	return b.manager.WritePoint(b.bucket, influx.EventPoint(j, e))
}
