// Package gormstorage implements storage.Backend on any gorm dialect. Rows
// are queued on the caller's goroutine and written in batches by a
// background writer.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RogersSierra/extension/internal/database"
	"github.com/RogersSierra/extension/internal/geo"
	"github.com/RogersSierra/extension/internal/model"
	"github.com/RogersSierra/extension/internal/model/convert"
	"github.com/RogersSierra/extension/internal/queue"
	"github.com/RogersSierra/extension/internal/storage"
	"github.com/RogersSierra/extension/pkg/core"
)

// Config holds the writer settings.
type Config struct {
	FlushInterval time.Duration
	QueueLimit    int // per queue; 0 is unbounded
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Trains  *queue.Queue[model.Train]
	Samples *queue.Queue[model.TrainSample]
	Events  *queue.Queue[model.TrainEvent]
}

func newQueues(limit int) *queues {
	return &queues{
		Trains:  queue.NewBounded[model.Train](limit),
		Samples: queue.NewBounded[model.TrainSample](limit),
		Events:  queue.NewBounded[model.TrainEvent](limit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	db     *gorm.DB
	cfg    Config
	log    zerolog.Logger
	queues *queues

	journeyID atomic.Uint64
	lastWrite atomic.Int64 // nanoseconds

	// writeMu serializes batch writes between the loop and explicit flushes.
	writeMu sync.Mutex

	traceMu sync.Mutex
	traces  map[string]*geo.Trace

	stop chan struct{}
	done chan struct{}
}

// New creates a GORM storage backend on db.
func New(db *gorm.DB, cfg Config, log zerolog.Logger) *Backend {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Backend{
		db:     db,
		cfg:    cfg,
		log:    log,
		queues: newQueues(cfg.QueueLimit),
		traces: make(map[string]*geo.Trace),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if err := database.Migrate(b.db, b.log); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stop != nil {
		close(b.stop)
		<-b.done
		b.stop = nil
	}
	return b.Flush()
}

// JourneyID returns the database id of the current journey, 0 if none.
func (b *Backend) JourneyID() uint {
	return uint(b.journeyID.Load())
}

// StartJourney inserts the journey row. Queued rows from a previous journey
// are flushed first so they keep their own journey id.
func (b *Backend) StartJourney(j *core.Journey) error {
	if err := b.Flush(); err != nil {
		b.log.Error().Err(err).Msg("Failed to flush before journey start")
	}

	row := convert.CoreToJourney(*j)
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new journey: %w", err)
	}
	b.journeyID.Store(uint64(row.ID))

	b.traceMu.Lock()
	b.traces = make(map[string]*geo.Trace)
	b.traceMu.Unlock()

	b.log.Info().Uint("journeyId", row.ID).Str("uuid", j.ID).Msg("Journey started")
	return nil
}

// EndJourney flushes queued rows, stores every train trace and closes the
// journey row with its end time and total distance.
func (b *Backend) EndJourney() error {
	id := b.JourneyID()
	if id == 0 {
		return storage.ErrNoJourney
	}
	if err := b.Flush(); err != nil {
		return err
	}

	b.traceMu.Lock()
	traces := make([]model.TrainTrace, 0, len(b.traces))
	var total float64
	for trainID, tr := range b.traces {
		if tr.Len() < 2 {
			continue
		}
		traces = append(traces, convert.TraceToModel(trainID, id, tr))
		total += tr.Length()
	}
	b.traceMu.Unlock()

	if len(traces) > 0 {
		if err := b.db.Create(&traces).Error; err != nil {
			return fmt.Errorf("failed to insert traces: %w", err)
		}
	}

	err := b.db.Model(&model.Journey{}).Where("id = ?", id).Updates(map[string]any{
		"end_time":       time.Now().UTC(),
		"total_distance": total,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close journey: %w", err)
	}

	b.journeyID.Store(0)
	b.log.Info().Uint("journeyId", id).Float64("distance", total).Int("trains", len(traces)).Msg("Journey ended")
	return nil
}

// AddTrain queues a train row.
func (b *Backend) AddTrain(t *core.TrainInfo) error {
	id := b.JourneyID()
	if id == 0 {
		return storage.ErrNoJourney
	}
	b.queues.Trains.Push(convert.CoreToTrain(*t, id))
	return nil
}

// RecordSample queues a sample row and extends the train's trace.
func (b *Backend) RecordSample(s *core.TrainSample) error {
	id := b.JourneyID()
	if id == 0 {
		return storage.ErrNoJourney
	}
	b.queues.Samples.Push(convert.CoreToSample(*s, id))

	b.traceMu.Lock()
	tr, ok := b.traces[s.TrainID]
	if !ok {
		tr = geo.NewTrace(geo.DefaultMinSpacing)
		b.traces[s.TrainID] = tr
	}
	tr.Add(s.Position)
	b.traceMu.Unlock()
	return nil
}

// RecordEvent queues an event row.
func (b *Backend) RecordEvent(e *core.TrainEvent) error {
	id := b.JourneyID()
	if id == 0 {
		return storage.ErrNoJourney
	}
	b.queues.Events.Push(convert.CoreToEvent(*e, id))
	return nil
}

// QueueLengths reports the depth of each write queue.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		Trains:  uint32(b.queues.Trains.Len()),
		Samples: uint32(b.queues.Samples.Len()),
		Events:  uint32(b.queues.Events.Len()),
	}
}

// Dropped returns how many queued rows were discarded on overflow.
func (b *Backend) Dropped() uint64 {
	return b.queues.Trains.Dropped() + b.queues.Samples.Dropped() + b.queues.Events.Dropped()
}

// WritePerformance stores a monitor snapshot against the current journey.
func (b *Backend) WritePerformance(p *model.CorePerformance) error {
	id := b.JourneyID()
	if id == 0 {
		return storage.ErrNoJourney
	}
	p.JourneyID = id
	if err := b.db.Omit(clause.Associations).Create(p).Error; err != nil {
		return fmt.Errorf("failed to write performance row: %w", err)
	}
	return nil
}

// GetLastDBWriteDuration returns the duration of the last write cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush writes every queued row now. Trains go first so samples and events
// never reference a missing train.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	// a recovered train is registered again under the same key
	err := writeQueue(b.db, b.queues.Trains, "trains", b.log, clause.OnConflict{DoNothing: true})
	if e := writeQueue(b.db, b.queues.Samples, "samples", b.log); err == nil {
		err = e
	}
	if e := writeQueue(b.db, b.queues.Events, "events", b.log); err == nil {
		err = e
	}
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Warn().Err(err).Msg("Batch write failed, will retry")
			}
		}
	}
}

// writeQueue drains q into one transaction. On failure the rows are put
// back at the front of the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger, clauses ...clause.Expression) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	tx := db.Begin()
	if err := tx.Clauses(clauses...).Create(&items).Error; err != nil {
		tx.Rollback()
		q.Requeue(items...)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items...)
		return fmt.Errorf("error committing %s: %w", name, err)
	}

	log.Trace().Int("count", len(items)).Str("table", name).Msg("Wrote batch")
	return nil
}
