package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/RogersSierra/extension/internal/events"
	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/internal/wheel"
	"github.com/RogersSierra/extension/pkg/core"
)

var (
	// ErrUnknownTrain is returned for ids the fleet does not hold.
	ErrUnknownTrain = errors.New("unknown train")
	// ErrTrainExists is returned when recovering an id that is still live.
	ErrTrainExists = errors.New("train already exists")
)

// Host bundles the per-vehicle host collaborators used to build a train.
type Host struct {
	Vehicle  host.Vehicle
	Skeleton host.Skeleton
	Props    host.PropFactory
}

// Fleet owns every live locomotive and isolates their ticks from each other.
type Fleet struct {
	cfg     Config
	bus     *events.Bus
	logger  *slog.Logger
	session Session

	mu     sync.Mutex
	trains map[string]*Train
	spawns uint64

	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	derails      metric.Int64Counter
	faults       metric.Int64Counter
}

// NewFleet creates an empty fleet publishing on bus. Metrics go to the global
// OTel meter (no-op if not configured).
func NewFleet(cfg Config, bus *events.Bus, logger *slog.Logger) (*Fleet, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if bus == nil {
		bus = events.NewBus(logger)
	}
	f := &Fleet{
		cfg:    cfg,
		bus:    bus,
		logger: logger,
		trains: make(map[string]*Train),
	}

	m := meter()
	var err error

	f.ticks, err = m.Int64Counter(
		"train.ticks",
		metric.WithDescription("Total locomotive ticks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	f.tickDuration, err = m.Float64Histogram(
		"train.tick.duration",
		metric.WithDescription("Locomotive tick duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick histogram: %w", err)
	}

	f.derails, err = m.Int64Counter(
		"train.derails",
		metric.WithDescription("Total derailments"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating derail counter: %w", err)
	}

	f.faults, err = m.Int64Counter(
		"train.tick.faults",
		metric.WithDescription("Ticks aborted by a panic"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fault counter: %w", err)
	}

	bus.Subscribe("fleet", f.onEvent)
	return f, nil
}

func (f *Fleet) onEvent(e core.Event) {
	if e.Kind == core.EventDerailed {
		f.derails.Add(context.Background(), 1)
	}
}

// Bus returns the event bus every train publishes on.
func (f *Fleet) Bus() *events.Bus {
	return f.bus
}

// Session returns the active-train session.
func (f *Fleet) Session() *Session {
	return &f.session
}

// ActiveID returns the id of the active train, or "".
func (f *Fleet) ActiveID() string {
	return f.session.ActiveID()
}

// Spawn builds a new locomotive with a fresh identity.
func (f *Fleet) Spawn(h Host, model string, wheels wheel.Diameters) (*Train, error) {
	return f.add(Options{ID: uuid.NewString(), Model: model, Wheels: wheels}, h)
}

// Recover rebuilds a locomotive for an identity the host kept from an earlier
// session. Only the identity survives; every physical quantity starts at its
// default.
func (f *Fleet) Recover(id string, h Host, model string, wheels wheel.Diameters) (*Train, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid train id %q: %w", id, err)
	}
	id = parsed.String()

	f.mu.Lock()
	_, exists := f.trains[id]
	f.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrTrainExists, id)
	}
	return f.add(Options{ID: id, Model: model, Wheels: wheels, Recovered: true}, h)
}

func (f *Fleet) add(opts Options, h Host) (*Train, error) {
	f.mu.Lock()
	f.spawns++
	cfg := f.cfg
	cfg.Collision.Seed += f.spawns
	f.mu.Unlock()

	t, err := New(opts, Deps{
		Vehicle:  h.Vehicle,
		Skeleton: h.Skeleton,
		Props:    h.Props,
		Bus:      f.bus,
		Logger:   f.logger,
	}, cfg)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.trains[t.ID()] = t
	f.mu.Unlock()

	f.logger.Info("train spawned", "train", t.ID(), "handle", t.Handle(), "recovered", opts.Recovered)
	t.emit(core.Event{Kind: core.EventSpawned})
	return t, nil
}

// Get returns the train with the given id.
func (f *Fleet) Get(id string) (*Train, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trains[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrain, id)
	}
	return t, nil
}

// Len returns the number of live trains.
func (f *Fleet) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.trains)
}

// Trains returns the live trains ordered by id.
func (f *Fleet) Trains() []*Train {
	f.mu.Lock()
	out := make([]*Train, 0, len(f.trains))
	for _, t := range f.trains {
		out = append(out, t)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Dispose removes a train and deletes its props.
func (f *Fleet) Dispose(id string) error {
	f.mu.Lock()
	t, ok := f.trains[id]
	delete(f.trains, id)
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrain, id)
	}

	f.session.Release(t)
	if err := t.Dispose(); err != nil {
		f.logger.Warn("train disposed with errors", "train", id, "error", err)
		return err
	}
	f.logger.Info("train disposed", "train", id)
	return nil
}

// Tick advances one train. A panic inside the tick is recovered, logged and
// the train's linkage is frozen so the other trains keep running.
func (f *Fleet) Tick(id string, dt float64, s host.Sample) (Report, error) {
	t, err := f.Get(id)
	if err != nil {
		return Report{}, err
	}
	return f.tick(t, dt, s)
}

func (f *Fleet) tick(t *Train, dt float64, s host.Sample) (r Report, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			f.faults.Add(context.Background(), 1)
			f.logger.Error("train tick panicked", "train", t.ID(), "panic", p)
			func() {
				defer func() { _ = recover() }()
				t.Freeze()
			}()
			r, err = Report{Speed: t.Speed()}, fmt.Errorf("tick %s: %v", t.ID(), p)
		}
		f.ticks.Add(context.Background(), 1)
		f.tickDuration.Record(context.Background(), float64(time.Since(start).Microseconds())/1000)
	}()
	return t.Tick(dt, s), nil
}

// TickAll advances every live train with its host sample. Trains without a
// sample tick with a zero sample. Errors from faulted trains are joined.
func (f *Fleet) TickAll(dt float64, samples map[string]host.Sample) error {
	var errs []error
	for _, t := range f.Trains() {
		if _, err := f.tick(t, dt, samples[t.ID()]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Couple merges b into a's consist: both take the mean of their speeds.
func (f *Fleet) Couple(a, b string) error {
	ta, err := f.Get(a)
	if err != nil {
		return err
	}
	tb, err := f.Get(b)
	if err != nil {
		return err
	}
	if ta.Derailed() || tb.Derailed() {
		return fmt.Errorf("coupling %s and %s: derailed trains cannot couple", a, b)
	}

	mean := (ta.Speed() + tb.Speed()) / 2
	ta.SetSpeed(mean)
	tb.SetSpeed(mean)
	ta.emit(core.Event{Kind: core.EventCoupled, Other: b})
	f.logger.Info("trains coupled", "train", a, "other", b, "speed", mean)
	return nil
}

// Close disposes every train.
func (f *Fleet) Close() error {
	var errs []error
	for _, t := range f.Trains() {
		if err := f.Dispose(t.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	f.session.SetActive(nil)
	return errors.Join(errs...)
}
