// Package storage defines the telemetry sink the recorder writes journeys to.
package storage

import (
	"errors"
	"time"

	"github.com/RogersSierra/extension/pkg/core"
)

// ErrNoJourney is returned when data arrives outside a journey.
var ErrNoJourney = errors.New("no journey in progress")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Journey management
	StartJourney(j *core.Journey) error
	EndJourney() error

	// Train registration
	AddTrain(t *core.TrainInfo) error

	// Telemetry
	RecordSample(s *core.TrainSample) error
	RecordEvent(e *core.TrainEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the journey server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// WriteDurationProvider is an optional interface for backends that write in
// batches and can report how long the last batch took.
type WriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}
