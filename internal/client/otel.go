package client

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/visualizer/internal/client"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
