// Package memory stores a journey in memory and exports it as JSON when the
// journey ends.
package memory

import (
	"sort"
	"sync"

	"github.com/RogersSierra/extension/internal/config"
	"github.com/RogersSierra/extension/internal/geo"
	"github.com/RogersSierra/extension/internal/storage"
	"github.com/RogersSierra/extension/pkg/core"
)

// TrainRecord groups a train with all its time-series data
type TrainRecord struct {
	Train   core.TrainInfo
	Samples []core.TrainSample
	Trace   *geo.Trace
}

// Backend stores journey data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	journey *core.Journey

	trains map[string]*TrainRecord // keyed by train id
	events []core.TrainEvent

	lastExportPath     string
	lastExportMetadata core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		trains: make(map[string]*TrainRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartJourney begins recording a new journey
func (b *Backend) StartJourney(j *core.Journey) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.journey = j
	b.trains = make(map[string]*TrainRecord)
	b.events = nil
	return nil
}

// EndJourney finalizes and exports the journey data
func (b *Backend) EndJourney() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.journey == nil {
		return storage.ErrNoJourney
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.journey = nil
	return nil
}

// AddTrain registers a train. A recovered train keeps its earlier samples.
func (b *Backend) AddTrain(t *core.TrainInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.journey == nil {
		return storage.ErrNoJourney
	}
	if rec, ok := b.trains[t.ID]; ok {
		rec.Train.Recovered = rec.Train.Recovered || t.Recovered
		rec.Train.Handle = t.Handle
		return nil
	}
	b.trains[t.ID] = &TrainRecord{
		Train:   *t,
		Samples: make([]core.TrainSample, 0),
		Trace:   geo.NewTrace(geo.DefaultMinSpacing),
	}
	return nil
}

// GetTrain looks up a registered train.
func (b *Backend) GetTrain(id string) (*core.TrainInfo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if rec, ok := b.trains[id]; ok {
		t := rec.Train
		return &t, true
	}
	return nil, false
}

// RecordSample records a train sample. Samples of unknown trains are ignored.
func (b *Backend) RecordSample(s *core.TrainSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.journey == nil {
		return storage.ErrNoJourney
	}
	rec, ok := b.trains[s.TrainID]
	if !ok {
		return nil
	}
	rec.Samples = append(rec.Samples, *s)
	rec.Trace.Add(s.Position)
	return nil
}

// RecordEvent records a train event
func (b *Backend) RecordEvent(e *core.TrainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.journey == nil {
		return storage.ErrNoJourney
	}
	b.events = append(b.events, *e)
	return nil
}

// GetExportedFilePath returns the path of the last export, "" before one.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export for the upload request.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}

// sortedTrains returns the records ordered by join time, then id.
func (b *Backend) sortedTrains() []*TrainRecord {
	out := make([]*TrainRecord, 0, len(b.trains))
	for _, rec := range b.trains {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Train.JoinTime.Equal(out[j].Train.JoinTime) {
			return out[i].Train.JoinTime.Before(out[j].Train.JoinTime)
		}
		return out[i].Train.ID < out[j].Train.ID
	})
	return out
}
