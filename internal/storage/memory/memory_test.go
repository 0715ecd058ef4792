// internal/storage/memory/memory_test.go
package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/pdf360/planview/internal/storage"
	"github.com/pdf360/planview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

type fixture struct {
	b       *Backend
	project core.Project
	plan    core.Plan
	marker  core.Marker
	image   core.MarkerImage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{b: New()}
	require.NoError(t, f.b.Init())
	t.Cleanup(func() { _ = f.b.Close() })

	f.project = core.Project{Name: "Site A", Folder: "site-a"}
	require.NoError(t, f.b.CreateProject(ctx, &f.project))
	f.plan = core.Plan{ProjectID: f.project.ID, Title: "Ground floor", Path: "site-a/ground.pdf"}
	require.NoError(t, f.b.CreatePlan(ctx, &f.plan))
	f.marker = core.Marker{PlanID: f.plan.ID, XPercent: 0.5, YPercent: 0.5, Title: "Icon_1"}
	require.NoError(t, f.b.CreateMarker(ctx, &f.marker))
	f.image = core.MarkerImage{MarkerID: f.marker.ID, FileName: "pano.jpg", URL: "site-a/Icon_1/pano.jpg"}
	require.NoError(t, f.b.CreateMarkerImage(ctx, &f.image))
	return f
}

func TestCreate_AssignsIDs(t *testing.T) {
	f := newFixture(t)

	ids := []uint{f.project.ID, f.plan.ID, f.marker.ID, f.image.ID}
	for _, id := range ids {
		assert.NotZero(t, id)
	}
	assert.Len(t, map[uint]bool{ids[0]: true, ids[1]: true, ids[2]: true, ids[3]: true}, 4)
	assert.False(t, f.project.CreatedAt.IsZero())
}

func TestCreate_RequiresParent(t *testing.T) {
	ctx := context.Background()
	b := New()

	err := b.CreatePlan(ctx, &core.Plan{ProjectID: 99})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	err = b.CreateMarker(ctx, &core.Marker{PlanID: 99})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	err = b.CreateMarkerImage(ctx, &core.MarkerImage{MarkerID: 99})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateProject_DuplicateFolder(t *testing.T) {
	f := newFixture(t)
	err := f.b.CreateProject(context.Background(), &core.Project{Name: "Other", Folder: "site-a"})
	assert.Error(t, err)
}

func TestCreateMarker_DropsTransientFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := core.Marker{PlanID: f.plan.ID, ImageURL: "x.jpg", Unsaved: true}
	require.NoError(t, f.b.CreateMarker(ctx, &m))

	got, err := f.b.GetMarker(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ImageURL)
	assert.False(t, got.Unsaved)
}

func TestRenameProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.b.RenameProject(ctx, f.project.ID, "Site B"))
	got, err := f.b.GetProject(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Site B", got.Name)
	assert.Equal(t, "site-a", got.Folder)

	assert.ErrorIs(t, f.b.RenameProject(ctx, 999, "x"), storage.ErrNotFound)
}

func TestListsAreScopedAndOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := core.Marker{PlanID: f.plan.ID, Title: "Icon_2"}
	require.NoError(t, f.b.CreateMarker(ctx, &second))

	otherPlan := core.Plan{ProjectID: f.project.ID, Title: "Roof"}
	require.NoError(t, f.b.CreatePlan(ctx, &otherPlan))
	require.NoError(t, f.b.CreateMarker(ctx, &core.Marker{PlanID: otherPlan.ID}))

	markers, err := f.b.ListMarkers(ctx, f.plan.ID)
	require.NoError(t, err)
	require.Len(t, markers, 2)
	assert.Equal(t, "Icon_1", markers[0].Title)
	assert.Equal(t, "Icon_2", markers[1].Title)

	plans, err := f.b.ListPlans(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, plans, 2)

	empty, err := f.b.ListMarkers(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateMarkerPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.b.UpdateMarkerPosition(ctx, f.marker.ID, 0.1, 0.8))
	got, err := f.b.GetMarker(ctx, f.marker.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, got.XPercent)
	assert.Equal(t, 0.8, got.YPercent)

	assert.ErrorIs(t, f.b.UpdateMarkerPosition(ctx, 999, 0, 0), storage.ErrNotFound)
}

func TestCountImagesByURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := core.Marker{PlanID: f.plan.ID}
	require.NoError(t, f.b.CreateMarker(ctx, &second))
	require.NoError(t, f.b.CreateMarkerImage(ctx, &core.MarkerImage{MarkerID: second.ID, URL: f.image.URL}))

	n, err := f.b.CountImagesByURL(ctx, f.image.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, f.b.DeleteMarkerImage(ctx, f.image.ID))
	n, err = f.b.CountImagesByURL(ctx, f.image.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeleteCascades(t *testing.T) {
	tests := []struct {
		name   string
		delete func(f *fixture) error
		gone   func(f *fixture) []error
	}{
		{
			name:   "marker removes images",
			delete: func(f *fixture) error { return f.b.DeleteMarker(context.Background(), f.marker.ID) },
			gone: func(f *fixture) []error {
				_, e1 := f.b.GetMarker(context.Background(), f.marker.ID)
				_, e2 := f.b.GetMarkerImage(context.Background(), f.image.ID)
				return []error{e1, e2}
			},
		},
		{
			name:   "plan removes markers and images",
			delete: func(f *fixture) error { return f.b.DeletePlan(context.Background(), f.plan.ID) },
			gone: func(f *fixture) []error {
				_, e1 := f.b.GetPlan(context.Background(), f.plan.ID)
				_, e2 := f.b.GetMarker(context.Background(), f.marker.ID)
				_, e3 := f.b.GetMarkerImage(context.Background(), f.image.ID)
				return []error{e1, e2, e3}
			},
		},
		{
			name:   "project removes everything",
			delete: func(f *fixture) error { return f.b.DeleteProject(context.Background(), f.project.ID) },
			gone: func(f *fixture) []error {
				_, e1 := f.b.GetProject(context.Background(), f.project.ID)
				_, e2 := f.b.GetPlan(context.Background(), f.plan.ID)
				_, e3 := f.b.GetMarker(context.Background(), f.marker.ID)
				_, e4 := f.b.GetMarkerImage(context.Background(), f.image.ID)
				return []error{e1, e2, e3, e4}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, tt.delete(f))
			for _, err := range tt.gone(f) {
				assert.ErrorIs(t, err, storage.ErrNotFound)
			}
			assert.ErrorIs(t, tt.delete(f), storage.ErrNotFound)
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.b.CreateMarker(ctx, &core.Marker{PlanID: f.plan.ID})
		}()
		go func() {
			defer wg.Done()
			_, _ = f.b.ListMarkers(ctx, f.plan.ID)
		}()
	}
	wg.Wait()

	markers, err := f.b.ListMarkers(ctx, f.plan.ID)
	require.NoError(t, err)
	assert.Len(t, markers, 21)
}
