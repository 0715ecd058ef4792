package convert

import (
	"github.com/pdf360/planview/internal/model"
	"github.com/pdf360/planview/pkg/core"
	"gorm.io/datatypes"
)

// CoreToProject converts a core.Project to a GORM Project
func CoreToProject(p core.Project) model.Project {
	return model.Project{
		ID:        p.ID,
		Name:      p.Name,
		Folder:    p.Folder,
		CreatedAt: p.CreatedAt,
	}
}

// CoreToPlan converts a core.Plan to a GORM Plan
func CoreToPlan(p core.Plan) model.Plan {
	var metadata datatypes.JSONMap
	if len(p.Metadata) > 0 {
		metadata = datatypes.JSONMap(p.Metadata)
	}
	return model.Plan{
		ID:          p.ID,
		ProjectID:   p.ProjectID,
		Title:       p.Title,
		Subfolder:   p.Subfolder,
		FileName:    p.FileName,
		Path:        p.Path,
		ContentType: p.ContentType,
		Size:        p.Size,
		Metadata:    metadata,
		CreatedAt:   p.CreatedAt,
	}
}

// CoreToMarker converts a core.Marker to a GORM Marker.
// ImageURL and Unsaved are view state and are not stored.
func CoreToMarker(m core.Marker) model.Marker {
	return model.Marker{
		ID:       m.ID,
		PlanID:   m.PlanID,
		XPercent: m.XPercent,
		YPercent: m.YPercent,
		Title:    m.Title,
	}
}

// CoreToMarkerImage converts a core.MarkerImage to a GORM MarkerImage
func CoreToMarkerImage(i core.MarkerImage) model.MarkerImage {
	return model.MarkerImage{
		ID:        i.ID,
		MarkerID:  i.MarkerID,
		FileName:  i.FileName,
		URL:       i.URL,
		CreatedAt: i.CreatedAt,
	}
}
