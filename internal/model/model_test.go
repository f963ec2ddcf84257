package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Journey", &Journey{}, "journeys"},
		{"Train", &Train{}, "trains"},
		{"TrainSample", &TrainSample{}, "train_samples"},
		{"TrainEvent", &TrainEvent{}, "train_events"},
		{"TrainTrace", &TrainTrace{}, "train_traces"},
		{"CorePerformance", &CorePerformance{}, "core_performances"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsCoverSchema(t *testing.T) {
	assert.Len(t, DatabaseModels, 6)
}
