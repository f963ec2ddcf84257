// Package worker queues journey telemetry and drains it into the storage
// backend from a background loop, keeping backend latency off the tick path.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RogersSierra/extension/internal/journey"
	"github.com/RogersSierra/extension/internal/queue"
	"github.com/RogersSierra/extension/internal/storage"
	"github.com/RogersSierra/extension/pkg/core"
)

// Config holds the queue settings.
type Config struct {
	FlushInterval time.Duration
	// QueueLimit bounds each queue; the oldest items are dropped past it.
	QueueLimit int
	// Upload sends exported journeys to the server after EndJourney.
	Upload bool
}

// JourneyObserver is told when recording starts and stops.
type JourneyObserver interface {
	JourneyStarted(j *core.Journey)
	JourneyEnded(j *core.Journey)
}

// Uploader sends an exported journey file to the journey server.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error
}

// Dependencies holds all dependencies for the worker manager.
type Dependencies struct {
	Journeys *journey.Context
	Logger   *slog.Logger
	// Uploader is optional.
	Uploader Uploader
}

// Queues holds the pending telemetry.
type Queues struct {
	Trains  *queue.Queue[core.TrainInfo]
	Samples *queue.Queue[core.TrainSample]
	Events  *queue.Queue[core.TrainEvent]
}

// QueueLengths is a snapshot of the queue depths.
type QueueLengths struct {
	Trains  int `json:"trains"`
	Samples int `json:"samples"`
	Events  int `json:"events"`
}

// Manager owns the telemetry queues and the journey lifecycle of the
// storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	cfg     Config
	logger  *slog.Logger
	queues  Queues

	observers []JourneyObserver

	// flushMu serializes backend access between the loop and journey calls.
	flushMu   sync.Mutex
	lastFlush atomic.Int64
	failed    atomic.Uint64
	uploads   sync.WaitGroup

	loopMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

// NewManager creates a new worker manager.
func NewManager(deps Dependencies, backend storage.Backend, cfg Config) *Manager {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		cfg:     cfg,
		logger:  logger.With("component", "worker"),
		queues: Queues{
			Trains:  queue.NewBounded[core.TrainInfo](cfg.QueueLimit),
			Samples: queue.NewBounded[core.TrainSample](cfg.QueueLimit),
			Events:  queue.NewBounded[core.TrainEvent](cfg.QueueLimit),
		},
	}
}

// Observe registers o for journey start and end.
func (m *Manager) Observe(o JourneyObserver) {
	m.observers = append(m.observers, o)
}

// Journeys returns the journey context.
func (m *Manager) Journeys() *journey.Context {
	return m.deps.Journeys
}

// Start launches the flush loop. Calling it twice is a no-op.
func (m *Manager) Start() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
}

// Stop ends the flush loop and writes what is still queued.
func (m *Manager) Stop() {
	m.loopMu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.loopMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	m.Flush()
	m.uploads.Wait()
}

func (m *Manager) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Flush()
		}
	}
}

// QueueTrain queues a train registration.
func (m *Manager) QueueTrain(t core.TrainInfo) {
	m.queues.Trains.Push(t)
}

// QueueSample queues a telemetry sample.
func (m *Manager) QueueSample(s core.TrainSample) {
	m.queues.Samples.Push(s)
}

// QueueEvent queues a train event.
func (m *Manager) QueueEvent(e core.TrainEvent) {
	m.queues.Events.Push(e)
}

// QueueLengths returns the current queue depths.
func (m *Manager) QueueLengths() QueueLengths {
	return QueueLengths{
		Trains:  m.queues.Trains.Len(),
		Samples: m.queues.Samples.Len(),
		Events:  m.queues.Events.Len(),
	}
}

// Dropped returns how many items were lost to full queues.
func (m *Manager) Dropped() uint64 {
	return m.queues.Trains.Dropped() + m.queues.Samples.Dropped() + m.queues.Events.Dropped()
}

// Failed returns how many items the backend rejected.
func (m *Manager) Failed() uint64 {
	return m.failed.Load()
}

// Flush writes every queued item to the backend. Trains go first so their
// samples and events always have an owner.
func (m *Manager) Flush() {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()
	m.flushLocked()
}

func (m *Manager) flushLocked() {
	start := time.Now()
	trains := m.queues.Trains.GetAndEmpty()
	samples := m.queues.Samples.GetAndEmpty()
	events := m.queues.Events.GetAndEmpty()
	if len(trains)+len(samples)+len(events) == 0 {
		return
	}

	for i := range trains {
		m.record("train", m.backend.AddTrain(&trains[i]))
	}
	for i := range samples {
		m.record("sample", m.backend.RecordSample(&samples[i]))
	}
	for i := range events {
		m.record("event", m.backend.RecordEvent(&events[i]))
	}

	m.lastFlush.Store(int64(time.Since(start)))
	m.logger.Debug("flushed telemetry",
		"trains", len(trains),
		"samples", len(samples),
		"events", len(events),
		"duration", time.Since(start))
}

func (m *Manager) record(kind string, err error) {
	if err == nil {
		return
	}
	m.failed.Add(1)
	if errors.Is(err, storage.ErrNoJourney) {
		return
	}
	m.logger.Warn("failed to write "+kind, "error", err)
}

// GetLastDBWriteDuration returns the duration of the last write cycle,
// as reported by the backend when it batches on its own.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(storage.WriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return time.Duration(m.lastFlush.Load())
}
