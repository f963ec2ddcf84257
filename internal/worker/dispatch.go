package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/RogersSierra/extension/internal/dispatcher"
	"github.com/RogersSierra/extension/internal/geo"
	"github.com/RogersSierra/extension/internal/journey"
	"github.com/RogersSierra/extension/internal/storage"
	"github.com/RogersSierra/extension/internal/util"
	"github.com/RogersSierra/extension/pkg/core"
)

const uploadTimeout = 2 * time.Minute

// RegisterHandlers registers the journey commands with the dispatcher.
// Both run synchronously: the host waits for the journey id and the
// export path.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":JOURNEY:START:", m.handleJourneyStart, dispatcher.Logged())
	d.Register(":JOURNEY:END:", m.handleJourneyEnd, dispatcher.Logged())
}

func (m *Manager) handleJourneyStart(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("journey start: expected world name, got %d args", len(e.Args))
	}
	tag := ""
	if len(e.Args) > 1 {
		tag = util.CleanArg(e.Args[1])
	}
	var origin *core.LonLat
	if len(e.Args) > 2 && util.CleanArg(e.Args[2]) != "" {
		o, err := geo.ParseOrigin(util.CleanArg(e.Args[2]))
		if err != nil {
			return nil, fmt.Errorf("journey start: origin %q: %w", e.Args[2], err)
		}
		origin = &o
	}
	j, err := m.StartJourneyAt(util.CleanArg(e.Args[0]), tag, origin)
	if err != nil {
		return nil, err
	}
	return j.ID, nil
}

func (m *Manager) handleJourneyEnd(dispatcher.Event) (any, error) {
	return m.EndJourney()
}

// StartJourney opens a journey on the backend and notifies the observers.
// Telemetry queued before the start is discarded.
func (m *Manager) StartJourney(world, tag string) (*core.Journey, error) {
	return m.StartJourneyAt(world, tag, nil)
}

// StartJourneyAt is StartJourney for a world anchored at origin.
func (m *Manager) StartJourneyAt(world, tag string, origin *core.LonLat) (*core.Journey, error) {
	j, err := m.deps.Journeys.Start(world, tag)
	if err != nil {
		return nil, err
	}
	j.Origin = origin

	m.flushMu.Lock()
	m.queues.Trains.Clear()
	m.queues.Samples.Clear()
	m.queues.Events.Clear()
	err = m.backend.StartJourney(j)
	m.flushMu.Unlock()
	if err != nil {
		_, _ = m.deps.Journeys.End()
		return nil, fmt.Errorf("starting journey: %w", err)
	}

	for _, o := range m.observers {
		o.JourneyStarted(j)
	}
	m.logger.Info("journey started", "journey", j.ID, "world", j.WorldName, "tag", j.Tag)
	return j, nil
}

// EndJourney stops recording, writes what is queued and closes the journey
// on the backend. It returns the export path when the backend produces
// one, and uploads it in the background when configured to.
func (m *Manager) EndJourney() (string, error) {
	j := m.deps.Journeys.Current()
	if j == nil {
		return "", journey.ErrNotActive
	}
	for _, o := range m.observers {
		o.JourneyEnded(j)
	}

	m.flushMu.Lock()
	m.flushLocked()
	err := m.backend.EndJourney()
	m.flushMu.Unlock()
	_, _ = m.deps.Journeys.End()
	if err != nil {
		return "", fmt.Errorf("ending journey: %w", err)
	}
	m.logger.Info("journey ended", "journey", j.ID, "elapsed", time.Since(j.StartTime))

	u, ok := m.backend.(storage.Uploadable)
	if !ok {
		return "", nil
	}
	path := u.GetExportedFilePath()
	if path != "" && m.cfg.Upload && m.deps.Uploader != nil {
		m.upload(path, u.GetExportMetadata())
	}
	return path, nil
}

func (m *Manager) upload(path string, meta core.UploadMetadata) {
	m.uploads.Add(1)
	go func() {
		defer m.uploads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		if err := m.deps.Uploader.Upload(ctx, path, meta); err != nil {
			m.logger.Error("journey upload failed", "path", path, "error", err)
			return
		}
		m.logger.Info("journey uploaded", "path", path)
	}()
}
