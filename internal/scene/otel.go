package scene

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/arscene/statesync/internal/scene"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
