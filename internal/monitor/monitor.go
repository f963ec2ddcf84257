// Package monitor reports the health of the core: fleet size, active train,
// telemetry queues and write latency.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/RogersSierra/extension/internal/dispatcher"
	"github.com/RogersSierra/extension/internal/journey"
	"github.com/RogersSierra/extension/internal/model"
	"github.com/RogersSierra/extension/internal/worker"
)

// StatusFileName is rewritten on every monitor cycle.
const StatusFileName = "status.txt"

// FleetSource is the part of train.Fleet the monitor reads.
type FleetSource interface {
	Len() int
	ActiveID() string
}

// QueueSource is the part of worker.Manager the monitor reads.
type QueueSource interface {
	QueueLengths() worker.QueueLengths
	Dropped() uint64
	Failed() uint64
	GetLastDBWriteDuration() time.Duration
}

// PerformanceWriter persists snapshots. The gorm backends and the influx
// manager implement it.
type PerformanceWriter interface {
	WritePerformance(p *model.CorePerformance) error
}

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Fleet    FleetSource
	Journeys *journey.Context
	Queues   QueueSource
	Logger   *slog.Logger
	// Writers are optional.
	Writers []PerformanceWriter
	// StatusDir receives status.txt when set.
	StatusDir string
	Interval  time.Duration
}

// Status is the answer to :STATUS:.
type Status struct {
	Time           time.Time           `json:"time"`
	FleetSize      int                 `json:"fleetSize"`
	ActiveTrain    string              `json:"activeTrain"`
	Journey        string              `json:"journey"`
	JourneySeconds float64             `json:"journeySeconds"`
	Queues         worker.QueueLengths `json:"queues"`
	Dropped        uint64              `json:"dropped"`
	Failed         uint64              `json:"failed"`
	LastWriteMs    float64             `json:"lastWriteMs"`
	Goroutines     int                 `json:"goroutines"`
	HeapAllocBytes uint64              `json:"heapAllocBytes"`
}

// Service manages status monitoring.
type Service struct {
	deps   Dependencies
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{deps: deps, logger: logger.With("component", "monitor")}
}

// RegisterHandlers registers :STATUS:.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":STATUS:", func(dispatcher.Event) (any, error) {
		data, err := json.Marshal(s.Status())
		if err != nil {
			return nil, fmt.Errorf("marshal status: %w", err)
		}
		return string(data), nil
	})
}

// Status takes a snapshot.
func (s *Service) Status() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := Status{
		Time:           time.Now().UTC(),
		FleetSize:      s.deps.Fleet.Len(),
		ActiveTrain:    s.deps.Fleet.ActiveID(),
		Journey:        s.deps.Journeys.ID(),
		JourneySeconds: s.deps.Journeys.Elapsed().Seconds(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
	if q := s.deps.Queues; q != nil {
		st.Queues = q.QueueLengths()
		st.Dropped = q.Dropped()
		st.Failed = q.Failed()
		st.LastWriteMs = float64(q.GetLastDBWriteDuration().Microseconds()) / 1000
	}
	return st
}

// Performance converts a status into the persisted snapshot.
func Performance(st Status) model.CorePerformance {
	return model.CorePerformance{
		Time:      st.Time,
		FleetSize: uint16(min(st.FleetSize, int(^uint16(0)))),
		WriteQueueLengths: model.WriteQueueLengths{
			Trains:  uint32(st.Queues.Trains),
			Samples: uint32(st.Queues.Samples),
			Events:  uint32(st.Queues.Events),
		},
		Dropped:             st.Dropped,
		LastWriteDurationMs: float32(st.LastWriteMs),
	}
}

// IsRunning returns whether the monitor loop is running.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the monitor loop.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stopChan, s.done)
}

// Stop ends the monitor loop and waits for it.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Report()
		}
	}
}

// Report logs one status line, rewrites the status file and, during a
// journey, persists a performance snapshot.
func (s *Service) Report() {
	st := s.Status()
	s.logger.Info("status",
		"fleet", st.FleetSize,
		"active", st.ActiveTrain,
		"journey", st.Journey,
		"samplesQueued", st.Queues.Samples,
		"dropped", st.Dropped,
		"lastWriteMs", st.LastWriteMs)

	if s.deps.StatusDir != "" {
		if err := s.writeStatusFile(st); err != nil {
			s.logger.Warn("failed to write status file", "error", err)
		}
	}
	if st.Journey == "" {
		return
	}
	for _, w := range s.deps.Writers {
		perf := Performance(st)
		if err := w.WritePerformance(&perf); err != nil {
			s.logger.Warn("failed to write performance snapshot", "error", err)
		}
	}
}

func (s *Service) writeStatusFile(st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.deps.StatusDir, StatusFileName), append(data, '\n'), 0o644)
}
