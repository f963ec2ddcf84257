// Package websocket streams journey telemetry live to the journey server.
package websocket

import (
	"log/slog"

	"github.com/RogersSierra/extension/internal/storage"
	"github.com/RogersSierra/extension/pkg/core"
	"github.com/RogersSierra/extension/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Stats is a snapshot of the connection health.
type Stats struct {
	Connected  bool
	Dropped    uint64
	Reconnects uint64
	Pending    int
}

// Backend implements storage.Backend. Journey start and end wait for a
// server ack; everything else is fire-and-forget.
type Backend struct {
	conn    *connection
	cfg     Config
	journey string
}

// New creates a WebSocket backend. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Stats reports the connection health.
func (b *Backend) Stats() Stats {
	return Stats{
		Connected:  b.conn.online.Load(),
		Dropped:    b.conn.dropped.Load(),
		Reconnects: b.conn.reconnects.Load(),
		Pending:    len(b.conn.sendCh),
	}
}

func (b *Backend) send(msgType string, payload any) error {
	if b.journey == "" {
		return storage.ErrNoJourney
	}
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartJourney sends the journey header and waits for the server ack.
func (b *Backend) StartJourney(j *core.Journey) error {
	data, err := streaming.Marshal(streaming.TypeStartJourney, streaming.StartJourneyPayload{Journey: j})
	if err != nil {
		return err
	}
	b.conn.setJourneyStart(data)
	b.journey = j.ID
	return b.conn.sendAndWait(data, streaming.TypeStartJourney, ackTimeout)
}

// EndJourney sends end_journey and waits for the server ack. The cached
// start is cleared even when the ack never arrives.
func (b *Backend) EndJourney() error {
	if b.journey == "" {
		return storage.ErrNoJourney
	}
	data, err := streaming.Marshal(streaming.TypeEndJourney, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndJourney, ackTimeout)
	b.conn.setJourneyStart(nil)
	b.journey = ""
	return err
}

func (b *Backend) AddTrain(t *core.TrainInfo) error {
	return b.send(streaming.TypeAddTrain, t)
}

func (b *Backend) RecordSample(s *core.TrainSample) error {
	return b.send(streaming.TypeTrainSample, s)
}

func (b *Backend) RecordEvent(e *core.TrainEvent) error {
	return b.send(streaming.TypeTrainEvent, e)
}
