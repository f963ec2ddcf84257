// Package telemetry turns fleet activity into journey records: train
// registrations, periodic samples and events.
package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/RogersSierra/extension/internal/events"
	"github.com/RogersSierra/extension/internal/train"
	"github.com/RogersSierra/extension/pkg/core"
)

// Sink receives the records. worker.Manager implements it.
type Sink interface {
	QueueTrain(t core.TrainInfo)
	QueueSample(s core.TrainSample)
	QueueEvent(e core.TrainEvent)
}

// Fleet is the part of train.Fleet the recorder reads.
type Fleet interface {
	Get(id string) (*train.Train, error)
	Trains() []*train.Train
}

// Config controls what is captured.
type Config struct {
	Enabled bool
	// SampleInterval is measured in simulated time.
	SampleInterval time.Duration
	// PistonStrokes records the four strokes per wheel turn as events.
	PistonStrokes bool
}

// Recorder feeds a Sink while a journey is open. It implements
// worker.JourneyObserver.
type Recorder struct {
	cfg    Config
	fleet  Fleet
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	journey     *core.Journey
	lastSample  map[string]float64
	unsubscribe func()
}

// New creates a recorder. It records nothing until JourneyStarted.
func New(cfg Config, fleet Fleet, sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		cfg:        cfg,
		fleet:      fleet,
		sink:       sink,
		logger:     logger.With("component", "telemetry"),
		now:        time.Now,
		lastSample: make(map[string]float64),
	}
}

// Attach subscribes to bus. A second Attach replaces the first.
func (r *Recorder) Attach(bus *events.Bus) {
	unsub := bus.Subscribe("telemetry", r.onEvent)
	r.mu.Lock()
	prev := r.unsubscribe
	r.unsubscribe = unsub
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Detach unsubscribes from the bus.
func (r *Recorder) Detach() {
	r.mu.Lock()
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (r *Recorder) current() *core.Journey {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cfg.Enabled {
		return nil
	}
	return r.journey
}

// JourneyStarted enrolls every live train and takes a first sample of each.
func (r *Recorder) JourneyStarted(j *core.Journey) {
	r.mu.Lock()
	r.journey = j
	r.lastSample = make(map[string]float64)
	r.mu.Unlock()

	if r.current() == nil {
		return
	}
	trains := r.fleet.Trains()
	for _, t := range trains {
		r.enroll(j, t)
		r.sample(j, t)
	}
	r.logger.Debug("recording started", "journey", j.ID, "trains", len(trains))
}

// JourneyEnded takes a closing sample of each live train and stops
// recording.
func (r *Recorder) JourneyEnded(j *core.Journey) {
	if cur := r.current(); cur != nil && cur.ID == j.ID {
		for _, t := range r.fleet.Trains() {
			r.sample(j, t)
		}
	}
	r.mu.Lock()
	if r.journey != nil && r.journey.ID == j.ID {
		r.journey = nil
	}
	r.mu.Unlock()
}

// Observe is called after every tick of t and samples it once per
// SampleInterval of simulated time.
func (r *Recorder) Observe(t *train.Train) {
	j := r.current()
	if j == nil || t.Disposed() {
		return
	}
	s := t.Sample()
	r.mu.Lock()
	last, seen := r.lastSample[t.ID()]
	due := !seen || s.SimTime-last >= r.cfg.SampleInterval.Seconds() || s.SimTime < last
	r.mu.Unlock()
	if due {
		r.push(j, s)
	}
}

func (r *Recorder) enroll(j *core.Journey, t *train.Train) {
	info := t.Info()
	info.JourneyID = j.ID
	info.JoinTime = r.now()
	r.sink.QueueTrain(info)
}

func (r *Recorder) sample(j *core.Journey, t *train.Train) {
	if t.Disposed() {
		return
	}
	r.push(j, t.Sample())
}

func (r *Recorder) push(j *core.Journey, s core.TrainSample) {
	s.JourneyID = j.ID
	s.Time = r.now()
	r.mu.Lock()
	r.lastSample[s.TrainID] = s.SimTime
	r.mu.Unlock()
	r.sink.QueueSample(s)
}

func (r *Recorder) onEvent(e core.Event) {
	j := r.current()
	if j == nil {
		return
	}

	switch e.Kind {
	case core.EventPistonStroke:
		if !r.cfg.PistonStrokes {
			return
		}
	case core.EventSpawned:
		t, err := r.fleet.Get(e.TrainID)
		if err != nil {
			r.logger.Warn("spawned train not in fleet", "train", e.TrainID, "error", err)
			break
		}
		r.enroll(j, t)
	case core.EventDisposed:
		r.mu.Lock()
		delete(r.lastSample, e.TrainID)
		r.mu.Unlock()
	}

	r.sink.QueueEvent(core.TrainEvent{JourneyID: j.ID, Time: r.now(), Event: e})
}
