package dispatcher

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pdf360/planview/internal/dispatcher"

// instruments come from the global meter provider, a no-op until one is installed.
type instruments struct {
	duration metric.Float64Histogram
	failed   metric.Int64Counter
}

func newInstruments() (*instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		in  instruments
		err error
	)
	if in.duration, err = m.Float64Histogram("dispatcher.command.duration",
		metric.WithDescription("Time spent handling one client command"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	if in.failed, err = m.Int64Counter("dispatcher.command.failed",
		metric.WithDescription("Client commands whose handler returned an error"),
	); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	return &in, nil
}
