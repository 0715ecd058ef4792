// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/pdf360/planview/pkg/core"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Projects (Create assigns the ID to the passed pointer)
	CreateProject(ctx context.Context, p *core.Project) error
	GetProject(ctx context.Context, id uint) (core.Project, error)
	ListProjects(ctx context.Context) ([]core.Project, error)
	RenameProject(ctx context.Context, id uint, name string) error
	DeleteProject(ctx context.Context, id uint) error

	// Plan documents
	CreatePlan(ctx context.Context, p *core.Plan) error
	GetPlan(ctx context.Context, id uint) (core.Plan, error)
	ListPlans(ctx context.Context, projectID uint) ([]core.Plan, error)
	DeletePlan(ctx context.Context, id uint) error

	// Markers
	CreateMarker(ctx context.Context, m *core.Marker) error
	GetMarker(ctx context.Context, id uint) (core.Marker, error)
	ListMarkers(ctx context.Context, planID uint) ([]core.Marker, error)
	UpdateMarkerPosition(ctx context.Context, id uint, x, y float64) error
	DeleteMarker(ctx context.Context, id uint) error

	// Marker images
	CreateMarkerImage(ctx context.Context, img *core.MarkerImage) error
	GetMarkerImage(ctx context.Context, id uint) (core.MarkerImage, error)
	ListMarkerImages(ctx context.Context, markerID uint) ([]core.MarkerImage, error)
	DeleteMarkerImage(ctx context.Context, id uint) error
	// CountImagesByURL counts marker-image rows referencing a document
	CountImagesByURL(ctx context.Context, url string) (int64, error)
}
