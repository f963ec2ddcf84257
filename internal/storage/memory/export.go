package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RogersSierra/extension/pkg/core"
)

// ExportFormatVersion is bumped whenever the export layout changes.
const ExportFormatVersion = 1

// JourneyExport is the root JSON structure
type JourneyExport struct {
	FormatVersion    int         `json:"formatVersion"`
	ExtensionVersion string      `json:"extensionVersion"`
	ExtensionBuild   string      `json:"extensionBuild,omitempty"`
	JourneyID        string      `json:"journeyId"`
	WorldName        string      `json:"worldName"`
	Tag              string      `json:"tag,omitempty"`
	StartTime        time.Time   `json:"startTime"`
	Duration         float64     `json:"duration"`
	TotalDistance    float64     `json:"totalDistance"`
	Trains           []TrainJSON `json:"trains"`
	Events           [][]any     `json:"events"`
}

// TrainJSON represents one locomotive and its samples.
type TrainJSON struct {
	ID         string    `json:"id"`
	Handle     string    `json:"handle"`
	Model      string    `json:"model,omitempty"`
	Recovered  bool      `json:"recovered"`
	WheelCount int       `json:"wheelCount"`
	JoinTime   time.Time `json:"joinTime"`
	Distance   float64   `json:"distance"`
	Trace      string    `json:"trace,omitempty"` // WKT line string
	// Samples is [simTime, [x, y, z], speed, pressure, throttle, gear, airBrake, steamBrake, derailed]
	Samples [][]any `json:"samples"`
}

// exportJSON writes the journey data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	world := strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_").Replace(b.journey.WorldName)
	if world == "" {
		world = "journey"
	}
	timestamp := b.journey.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", world, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", world, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMetadata = core.UploadMetadata{
		WorldName:     export.WorldName,
		JourneyName:   fmt.Sprintf("%s %s", export.WorldName, timestamp),
		Duration:      export.Duration,
		TrainCount:    len(export.Trains),
		TotalDistance: export.TotalDistance,
		Tag:           export.Tag,
	}
	return nil
}

func (b *Backend) buildExport() JourneyExport {
	export := JourneyExport{
		FormatVersion:    ExportFormatVersion,
		ExtensionVersion: b.journey.ExtensionVersion,
		ExtensionBuild:   b.journey.ExtensionBuild,
		JourneyID:        b.journey.ID,
		WorldName:        b.journey.WorldName,
		Tag:              b.journey.Tag,
		StartTime:        b.journey.StartTime,
		Trains:           make([]TrainJSON, 0, len(b.trains)),
		Events:           make([][]any, 0, len(b.events)),
	}

	var last time.Time
	for _, rec := range b.sortedTrains() {
		train := TrainJSON{
			ID:         rec.Train.ID,
			Handle:     rec.Train.Handle,
			Model:      rec.Train.Model,
			Recovered:  rec.Train.Recovered,
			WheelCount: rec.Train.WheelCount,
			JoinTime:   rec.Train.JoinTime,
			Distance:   rec.Trace.Length(),
			Samples:    make([][]any, 0, len(rec.Samples)),
		}
		if rec.Trace.Len() >= 2 {
			train.Trace = rec.Trace.WKT()
		}

		for _, s := range rec.Samples {
			train.Samples = append(train.Samples, []any{
				s.SimTime,
				[]float64{s.Position.X, s.Position.Y, s.Position.Z},
				s.Speed,
				s.Pressure,
				s.Throttle,
				s.Gear,
				s.AirBrake,
				boolToInt(s.SteamBrake),
				boolToInt(s.Derailed),
			})
			if s.Time.After(last) {
				last = s.Time
			}
		}

		export.TotalDistance += train.Distance
		export.Trains = append(export.Trains, train)
	}

	// Format: [simTime, trainId, kind, detail]
	for _, e := range b.events {
		var detail any
		switch {
		case e.Kind == core.EventPistonStroke:
			detail = e.Quadrant
		case e.Other != "":
			detail = e.Other
		}
		export.Events = append(export.Events, []any{e.SimTime, e.TrainID, string(e.Kind), detail})
		if e.Time.After(last) {
			last = e.Time
		}
	}

	if !last.IsZero() && last.After(b.journey.StartTime) {
		export.Duration = last.Sub(b.journey.StartTime).Seconds()
	}
	return export
}

func writeJSON(path string, data JourneyExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data JourneyExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode journey: %w", err)
	}
	return gzWriter.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
