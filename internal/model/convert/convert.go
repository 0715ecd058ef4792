// Package convert provides functions to convert GORM models to core models
package convert

import (
	"encoding/json"

	"github.com/pdf360/planview/internal/model"
	"github.com/pdf360/planview/pkg/core"
)

// ProjectToCore converts a GORM Project to a core.Project
func ProjectToCore(p model.Project) core.Project {
	return core.Project{
		ID:        p.ID,
		Name:      p.Name,
		Folder:    p.Folder,
		CreatedAt: p.CreatedAt,
	}
}

// PlanToCore converts a GORM Plan to a core.Plan
func PlanToCore(p model.Plan) core.Plan {
	var metadata map[string]any
	if len(p.Metadata) > 0 {
		metadata = normalizeNumbers(map[string]any(p.Metadata)).(map[string]any)
	}
	return core.Plan{
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

// normalizeNumbers replaces the json.Number values JSONMap.Scan produces with float64,
// so metadata looks the same whichever backend loaded it.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeNumbers(e)
		}
		return out
	default:
		return v
	}
}

// MarkerToCore converts a GORM Marker to a core.Marker. ImageURL is filled by the caller.
func MarkerToCore(m model.Marker) core.Marker {
	return core.Marker{
		ID:       m.ID,
		PlanID:   m.PlanID,
		XPercent: m.XPercent,
		YPercent: m.YPercent,
		Title:    m.Title,
	}
}

// MarkerImageToCore converts a GORM MarkerImage to a core.MarkerImage
func MarkerImageToCore(i model.MarkerImage) core.MarkerImage {
	return core.MarkerImage{
		ID:        i.ID,
		MarkerID:  i.MarkerID,
		FileName:  i.FileName,
		URL:       i.URL,
		CreatedAt: i.CreatedAt,
	}
}
