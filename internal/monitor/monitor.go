// Package monitor periodically reports the server's runtime status.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/pdf360/planview/internal/workspace"
)

// DefaultInterval is how often the status file is rewritten
const DefaultInterval = 5 * time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	// Sessions returns the number of connected clients
	Sessions func() int
	// TelemetryPending returns the number of queued telemetry points
	TelemetryPending func() int
	Workspace        *workspace.Context
	// StatusPath is the file rewritten on every tick. Empty disables the file.
	StatusPath string
	Interval   time.Duration
	Logger     *slog.Logger
}

// Status is one snapshot of the server
type Status struct {
	Time             time.Time `json:"time"`
	Uptime           string    `json:"uptime"`
	Sessions         int       `json:"sessions"`
	TelemetryPending int       `json:"telemetryPending"`
	Goroutines       int       `json:"goroutines"`
	HeapAllocBytes   uint64    `json:"heapAllocBytes"`
	ProjectID        uint      `json:"projectId,omitempty"`
	PlanID           uint      `json:"planId,omitempty"`
	Plan             string    `json:"plan,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	started time.Time

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, started: time.Now()}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current program status
func (s *Service) GetStatus() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()
	st := Status{
		Time:           now,
		Uptime:         now.Sub(s.started).Truncate(time.Second).String(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
	if s.deps.Sessions != nil {
		st.Sessions = s.deps.Sessions()
	}
	if s.deps.TelemetryPending != nil {
		st.TelemetryPending = s.deps.TelemetryPending()
	}
	if s.deps.Workspace != nil {
		project, plan := s.deps.Workspace.GetProject(), s.deps.Workspace.GetPlan()
		if plan.ID != 0 {
			st.ProjectID = project.ID
			st.PlanID = plan.ID
			st.Plan = plan.Title
		}
	}
	return st
}

// WriteStatus replaces the status file with the current snapshot
func (s *Service) WriteStatus() error {
	if s.deps.StatusPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.deps.StatusPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return nil
}

// RegisterMetrics publishes the session count and telemetry backlog as observable gauges
func (s *Service) RegisterMetrics(meter metric.Meter) error {
	if s.deps.Sessions != nil {
		_, err := meter.Int64ObservableGauge("planview.sessions.active",
			metric.WithDescription("Connected client sessions"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(s.deps.Sessions()))
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to register session gauge: %w", err)
		}
	}
	if s.deps.TelemetryPending != nil {
		_, err := meter.Int64ObservableGauge("planview.telemetry.pending",
			metric.WithDescription("Telemetry points waiting for the next flush"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(s.deps.TelemetryPending()))
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to register telemetry gauge: %w", err)
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval, "path", s.deps.StatusPath)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status", "error", err)
				}
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
