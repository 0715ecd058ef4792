package telemetry

import (
	"context"
	"strconv"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pdf360/planview/internal/queue"
	"github.com/rs/zerolog"
)

// Measurements written by the recorder
const (
	MeasurementDrag = "marker_drag"
	MeasurementSync = "view_sync"
)

// DefaultFlushInterval is how often queued points are handed to the sink
const DefaultFlushInterval = 2 * time.Second

// MaxPending caps the queued points; the oldest are dropped first
const MaxPending = 10000

// Sink receives telemetry points
type Sink interface {
	WritePoint(ctx context.Context, point *influxdb2_write.Point) error
}

// Recorder buffers interaction points and flushes them to a sink in the background.
// A Recorder without a sink drops everything.
type Recorder struct {
	sink     Sink
	points   *queue.Queue[*influxdb2_write.Point]
	interval time.Duration
	logger   zerolog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRecorder creates a recorder flushing to sink every interval
func NewRecorder(sink Sink, interval time.Duration, log zerolog.Logger) *Recorder {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Recorder{
		sink:     sink,
		points:   queue.New[*influxdb2_write.Point](MaxPending),
		interval: interval,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Start launches the flush goroutine
func (r *Recorder) Start() {
	if r.sink == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.Flush(context.Background())
			}
		}
	}()
}

// Close stops the flush goroutine and writes what is left
func (r *Recorder) Close() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
	r.Flush(context.Background())
}

// Pending returns the number of queued points
func (r *Recorder) Pending() int {
	return r.points.Len()
}

// Flush hands every queued point to the sink
func (r *Recorder) Flush(ctx context.Context) {
	if r.sink == nil || r.points.Empty() {
		return
	}
	for _, p := range r.points.Drain() {
		if err := r.sink.WritePoint(ctx, p); err != nil {
			r.logger.Error().Err(err).Str("measurement", p.Name()).Msg("Error writing telemetry point")
		}
	}
}

// DragEnded records the outcome of one marker gesture
func (r *Recorder) DragEnded(planID, markerID uint, outcome string, x, y float64, at time.Time) {
	if r.sink == nil {
		return
	}
	p := influxdb2_write.NewPointWithMeasurement(MeasurementDrag).
		AddTag("plan", strconv.FormatUint(uint64(planID), 10)).
		AddTag("outcome", outcome).
		AddField("marker", int64(markerID)).
		AddField("x", x).
		AddField("y", y).
		SetTime(at)
	r.push(p)
}

// ViewSynced records one leader-to-follower propagation
func (r *Recorder) ViewSynced(leader string, at time.Time) {
	if r.sink == nil {
		return
	}
	p := influxdb2_write.NewPointWithMeasurement(MeasurementSync).
		AddTag("leader", leader).
		AddField("count", 1).
		SetTime(at)
	r.push(p)
}

func (r *Recorder) push(p *influxdb2_write.Point) {
	if n := r.points.Push(p); n > 0 {
		r.logger.Warn().Int("dropped", n).Uint64("total", r.points.Dropped()).Msg("Telemetry backlog full, dropping oldest points")
	}
}
