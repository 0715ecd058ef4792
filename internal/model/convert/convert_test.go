package convert

import (
	"testing"
	"time"

	"github.com/pdf360/planview/internal/model"
	"github.com/pdf360/planview/pkg/core"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestPlanToCore(t *testing.T) {
	now := time.Now()
	gormPlan := model.Plan{
		ID:          4,
		CreatedAt:   now,
		ProjectID:   2,
		Title:       "Ground floor",
		Subfolder:   "Level 0",
		FileName:    "ground.pdf",
		Path:        "Site A/Level 0/ground.pdf",
		ContentType: "application/pdf",
		Size:        1024,
		Metadata:    datatypes.JSONMap{"pages": float64(3)},
	}

	got := PlanToCore(gormPlan)

	assert.Equal(t, uint(4), got.ID)
	assert.Equal(t, uint(2), got.ProjectID)
	assert.Equal(t, "Level 0", got.Subfolder)
	assert.Equal(t, "Site A/Level 0/ground.pdf", got.Path)
	assert.Equal(t, int64(1024), got.Size)
	assert.Equal(t, float64(3), got.Metadata["pages"])
	assert.Equal(t, now, got.CreatedAt)
}

func TestPlanToCore_NormalizesNumbers(t *testing.T) {
	var meta datatypes.JSONMap
	assert.NoError(t, meta.Scan([]byte(`{"pages":3,"scale":{"ratio":0.5},"sheets":[1,"A2"]}`)))

	got := PlanToCore(model.Plan{Metadata: meta}).Metadata

	assert.Equal(t, float64(3), got["pages"])
	assert.Equal(t, map[string]any{"ratio": 0.5}, got["scale"])
	assert.Equal(t, []any{float64(1), "A2"}, got["sheets"])
}

func TestPlanToCore_EmptyMetadata(t *testing.T) {
	assert.Nil(t, PlanToCore(model.Plan{}).Metadata)
	assert.Nil(t, CoreToPlan(core.Plan{Metadata: map[string]any{}}).Metadata)
}

func TestMarkerToCore(t *testing.T) {
	got := MarkerToCore(model.Marker{ID: 7, PlanID: 4, XPercent: 0.1, YPercent: 0.8, Title: "Icon_3"})

	assert.Equal(t, core.Marker{ID: 7, PlanID: 4, XPercent: 0.1, YPercent: 0.8, Title: "Icon_3"}, got)
}

func TestCoreToMarker_DropsViewState(t *testing.T) {
	got := CoreToMarker(core.Marker{ID: 7, PlanID: 4, XPercent: 0.5, YPercent: 0.5, ImageURL: "a.jpg", Unsaved: true})

	assert.Equal(t, model.Marker{ID: 7, PlanID: 4, XPercent: 0.5, YPercent: 0.5}, got)
}

func TestProjectAndImageConversions(t *testing.T) {
	now := time.Now()

	p := CoreToProject(core.Project{ID: 1, Name: "Site A", Folder: "Site A", CreatedAt: now})
	assert.Equal(t, core.Project{ID: 1, Name: "Site A", Folder: "Site A", CreatedAt: now}, ProjectToCore(p))

	img := CoreToMarkerImage(core.MarkerImage{ID: 3, MarkerID: 7, FileName: "pano.jpg", URL: "Site A/pano.jpg", CreatedAt: now})
	assert.Equal(t, uint(7), img.MarkerID)
	assert.Equal(t, "Site A/pano.jpg", MarkerImageToCore(img).URL)
}
