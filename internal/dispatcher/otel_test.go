package dispatcher

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestDispatcher_CommandMetrics(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	d, err := New(&testLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer d.Close()

	d.Register("pointer_move", func(Event) (any, error) { return nil, nil })
	d.Register("open_plan", func(Event) (any, error) { return nil, errors.New("no such plan") })

	d.Dispatch(Event{Command: "pointer_move"})
	d.Dispatch(Event{Command: "pointer_move"})
	d.Dispatch(Event{Command: "open_plan"})

	data := collect(t, reader)

	hist, ok := data["dispatcher.command.duration"].(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration histogram missing, got %v", data)
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 3 {
		t.Errorf("expected 3 recorded durations, got %d", total)
	}

	failed, ok := data["dispatcher.command.failed"].(metricdata.Sum[int64])
	if !ok || len(failed.DataPoints) != 1 || failed.DataPoints[0].Value != 1 {
		t.Errorf("expected one failed open_plan, got %+v", data["dispatcher.command.failed"])
	}
}
