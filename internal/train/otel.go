package train

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/RogersSierra/extension/internal/train"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
