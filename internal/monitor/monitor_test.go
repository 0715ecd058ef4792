package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/pdf360/planview/internal/workspace"
	"github.com/pdf360/planview/pkg/core"
)

func TestGetStatus(t *testing.T) {
	wc := workspace.NewContext()
	s := NewService(Dependencies{
		Sessions:         func() int { return 3 },
		TelemetryPending: func() int { return 7 },
		Workspace:        wc,
	})

	st := s.GetStatus()
	assert.Equal(t, 3, st.Sessions)
	assert.Equal(t, 7, st.TelemetryPending)
	assert.Positive(t, st.Goroutines)
	assert.Zero(t, st.PlanID, "no plan open")

	wc.SetPlan(&core.Project{ID: 2, Name: "Site A"}, &core.Plan{ID: 5, Title: "Ground"})
	st = s.GetStatus()
	assert.Equal(t, uint(2), st.ProjectID)
	assert.Equal(t, uint(5), st.PlanID)
	assert.Equal(t, "Ground", st.Plan)
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{Sessions: func() int { return 1 }, StatusPath: path})

	require.NoError(t, s.WriteStatus())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, 1, st.Sessions)
}

func TestWriteStatus_NoPath(t *testing.T) {
	assert.NoError(t, NewService(Dependencies{}).WriteStatus())
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{StatusPath: path, Interval: 5 * time.Millisecond})

	s.Start()
	s.Start() // no second goroutine
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	s.Start()
	assert.True(t, s.IsRunning())
	s.Stop()
}

func TestRegisterMetrics(t *testing.T) {
	s := NewService(Dependencies{
		Sessions:         func() int { return 1 },
		TelemetryPending: func() int { return 0 },
	})
	assert.NoError(t, s.RegisterMetrics(noop.NewMeterProvider().Meter("test")))
}
