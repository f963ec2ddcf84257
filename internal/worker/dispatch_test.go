package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogersSierra/extension/internal/config"
	"github.com/RogersSierra/extension/internal/dispatcher"
	"github.com/RogersSierra/extension/internal/geo"
	"github.com/RogersSierra/extension/internal/journey"
	"github.com/RogersSierra/extension/internal/logging"
	"github.com/RogersSierra/extension/internal/storage/memory"
	"github.com/RogersSierra/extension/pkg/core"
)

type observer struct {
	started []string
	ended   []string
}

func (o *observer) JourneyStarted(j *core.Journey) { o.started = append(o.started, j.ID) }
func (o *observer) JourneyEnded(j *core.Journey)   { o.ended = append(o.ended, j.ID) }

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	meta  []core.UploadMetadata
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, path string, meta core.UploadMetadata) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, path)
	u.meta = append(u.meta, meta)
	return u.err
}

func newDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestRegisterHandlers(t *testing.T) {
	d := newDispatcher(t)
	m := newManager(&mockBackend{}, Config{})
	m.RegisterHandlers(d)

	assert.True(t, d.HasHandler(":JOURNEY:START:"))
	assert.True(t, d.HasHandler(":JOURNEY:END:"))
}

func TestJourneyCommands(t *testing.T) {
	d := newDispatcher(t)
	b := &mockBackend{}
	m := newManager(b, Config{})
	obs := &observer{}
	m.Observe(obs)
	m.RegisterHandlers(d)

	_, err := d.Dispatch(dispatcher.Event{Command: ":JOURNEY:START:"})
	assert.ErrorContains(t, err, "expected world name")

	res, err := d.Dispatch(dispatcher.Event{Command: ":JOURNEY:START:", Args: []string{`"Altis"`, `"Race"`}})
	require.NoError(t, err)
	id, ok := res.(string)
	require.True(t, ok)
	assert.Equal(t, id, m.Journeys().ID())
	assert.Equal(t, "Altis", b.journey.WorldName)
	assert.Equal(t, "Race", b.journey.Tag)
	assert.Equal(t, []string{id}, obs.started)

	_, err = d.Dispatch(dispatcher.Event{Command: ":JOURNEY:START:", Args: []string{"Tanoa"}})
	assert.ErrorIs(t, err, journey.ErrActive)

	m.QueueSample(core.TrainSample{TrainID: "t1"})
	res, err = d.Dispatch(dispatcher.Event{Command: ":JOURNEY:END:"})
	require.NoError(t, err)
	assert.Equal(t, "", res)
	assert.Equal(t, []string{id}, obs.ended)
	assert.Equal(t, 1, b.ended)
	_, samples, _ := b.counts()
	assert.Equal(t, 1, samples, "queued telemetry is written before the journey closes")

	_, err = d.Dispatch(dispatcher.Event{Command: ":JOURNEY:END:"})
	assert.ErrorIs(t, err, journey.ErrNotActive)
}

func TestJourneyStart_Origin(t *testing.T) {
	d := newDispatcher(t)
	b := &mockBackend{}
	m := newManager(b, Config{})
	m.RegisterHandlers(d)

	_, err := d.Dispatch(dispatcher.Event{Command: ":JOURNEY:START:", Args: []string{"Altis", "", `"north,pole"`}})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
	assert.Nil(t, m.Journeys().Current())

	_, err = d.Dispatch(dispatcher.Event{Command: ":JOURNEY:START:", Args: []string{"Altis", "", `"25.1,35.2"`}})
	require.NoError(t, err)
	require.NotNil(t, b.journey.Origin)
	assert.Equal(t, core.LonLat{Lon: 25.1, Lat: 35.2}, *b.journey.Origin)
}

func TestStartJourney_BackendFailureRollsBack(t *testing.T) {
	b := &mockBackend{startErr: errors.New("db down")}
	m := newManager(b, Config{})
	obs := &observer{}
	m.Observe(obs)

	_, err := m.StartJourney("Altis", "")
	require.ErrorContains(t, err, "db down")
	assert.Nil(t, m.Journeys().Current())
	assert.Empty(t, obs.started)
}

func TestStartJourney_DiscardsStaleTelemetry(t *testing.T) {
	b := &mockBackend{}
	m := newManager(b, Config{})
	m.QueueSample(core.TrainSample{TrainID: "old"})

	_, err := m.StartJourney("Altis", "")
	require.NoError(t, err)
	m.Flush()
	_, samples, _ := b.counts()
	assert.Zero(t, samples)
}

func TestEndJourney_ExportAndUpload(t *testing.T) {
	dir := t.TempDir()
	b := memory.New(config.MemoryConfig{OutputDir: dir})
	up := &fakeUploader{}
	m := NewManager(Dependencies{
		Journeys: journey.NewContext("1.0.0", "test", "Freeroam"),
		Uploader: up,
	}, b, Config{Upload: true})

	_, err := m.StartJourney("Altis", "")
	require.NoError(t, err)
	m.QueueTrain(core.TrainInfo{ID: "t1"})
	m.QueueSample(core.TrainSample{TrainID: "t1", Time: time.Now()})

	path, err := m.EndJourney()
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.FileExists(t, path)

	m.Stop()
	up.mu.Lock()
	defer up.mu.Unlock()
	require.Equal(t, []string{path}, up.paths)
	assert.Equal(t, "Altis", up.meta[0].WorldName)
	assert.Equal(t, 1, up.meta[0].TrainCount)
}

func TestEndJourney_UploadDisabled(t *testing.T) {
	b := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	up := &fakeUploader{}
	m := NewManager(Dependencies{Journeys: journey.NewContext("", "", ""), Uploader: up}, b, Config{})

	_, err := m.StartJourney("Altis", "")
	require.NoError(t, err)
	path, err := m.EndJourney()
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	m.Stop()
	assert.Empty(t, up.paths)
}
