// internal/storage/memory/memory.go
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pdf360/planview/internal/storage"
	"github.com/pdf360/planview/pkg/core"
)

// Backend keeps all records in process memory. Used for development and tests.
type Backend struct {
	projects map[uint]core.Project
	plans    map[uint]core.Plan
	markers  map[uint]core.Marker
	images   map[uint]core.MarkerImage

	idCounter uint
	mu        sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		projects: make(map[uint]core.Project),
		plans:    make(map[uint]core.Plan),
		markers:  make(map[uint]core.Marker),
		images:   make(map[uint]core.MarkerImage),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) nextID() uint {
	b.idCounter++
	return b.idCounter
}

func notFound(kind string, id uint) error {
	return fmt.Errorf("%s %d: %w", kind, id, storage.ErrNotFound)
}

func sortedValues[T any](m map[uint]T, keep func(T) bool, id func(T) uint) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return out
}

// CreateProject registers a project
func (b *Backend) CreateProject(_ context.Context, p *core.Project) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.projects {
		if existing.Folder == p.Folder {
			return fmt.Errorf("project folder %q already in use", p.Folder)
		}
	}
	p.ID = b.nextID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	b.projects[p.ID] = *p
	return nil
}

func (b *Backend) GetProject(_ context.Context, id uint) (core.Project, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.projects[id]
	if !ok {
		return core.Project{}, notFound("project", id)
	}
	return p, nil
}

func (b *Backend) ListProjects(_ context.Context) ([]core.Project, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedValues(b.projects,
		func(core.Project) bool { return true },
		func(p core.Project) uint { return p.ID }), nil
}

func (b *Backend) RenameProject(_ context.Context, id uint, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.projects[id]
	if !ok {
		return notFound("project", id)
	}
	p.Name = name
	b.projects[id] = p
	return nil
}

// DeleteProject removes a project with its plans, markers and images
func (b *Backend) DeleteProject(_ context.Context, id uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.projects[id]; !ok {
		return notFound("project", id)
	}
	for planID, plan := range b.plans {
		if plan.ProjectID == id {
			b.deletePlanLocked(planID)
		}
	}
	delete(b.projects, id)
	return nil
}

// CreatePlan registers a plan document
func (b *Backend) CreatePlan(_ context.Context, p *core.Plan) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.projects[p.ProjectID]; !ok {
		return notFound("project", p.ProjectID)
	}
	p.ID = b.nextID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	b.plans[p.ID] = *p
	return nil
}

func (b *Backend) GetPlan(_ context.Context, id uint) (core.Plan, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.plans[id]
	if !ok {
		return core.Plan{}, notFound("plan", id)
	}
	return p, nil
}

func (b *Backend) ListPlans(_ context.Context, projectID uint) ([]core.Plan, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedValues(b.plans,
		func(p core.Plan) bool { return p.ProjectID == projectID },
		func(p core.Plan) uint { return p.ID }), nil
}

// DeletePlan removes a plan with its markers and images
func (b *Backend) DeletePlan(_ context.Context, id uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.plans[id]; !ok {
		return notFound("plan", id)
	}
	b.deletePlanLocked(id)
	return nil
}

func (b *Backend) deletePlanLocked(id uint) {
	for markerID, m := range b.markers {
		if m.PlanID == id {
			b.deleteMarkerLocked(markerID)
		}
	}
	delete(b.plans, id)
}

// CreateMarker registers a marker
func (b *Backend) CreateMarker(_ context.Context, m *core.Marker) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.plans[m.PlanID]; !ok {
		return notFound("plan", m.PlanID)
	}
	m.ID = b.nextID()
	stored := *m
	stored.ImageURL, stored.Unsaved = "", false
	b.markers[m.ID] = stored
	return nil
}

func (b *Backend) GetMarker(_ context.Context, id uint) (core.Marker, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.markers[id]
	if !ok {
		return core.Marker{}, notFound("marker", id)
	}
	return m, nil
}

func (b *Backend) ListMarkers(_ context.Context, planID uint) ([]core.Marker, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedValues(b.markers,
		func(m core.Marker) bool { return m.PlanID == planID },
		func(m core.Marker) uint { return m.ID }), nil
}

func (b *Backend) UpdateMarkerPosition(_ context.Context, id uint, x, y float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.markers[id]
	if !ok {
		return notFound("marker", id)
	}
	m.XPercent, m.YPercent = x, y
	b.markers[id] = m
	return nil
}

// DeleteMarker removes a marker and its image rows
func (b *Backend) DeleteMarker(_ context.Context, id uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.markers[id]; !ok {
		return notFound("marker", id)
	}
	b.deleteMarkerLocked(id)
	return nil
}

func (b *Backend) deleteMarkerLocked(id uint) {
	for imageID, img := range b.images {
		if img.MarkerID == id {
			delete(b.images, imageID)
		}
	}
	delete(b.markers, id)
}

// CreateMarkerImage registers a panorama for a marker
func (b *Backend) CreateMarkerImage(_ context.Context, img *core.MarkerImage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.markers[img.MarkerID]; !ok {
		return notFound("marker", img.MarkerID)
	}
	img.ID = b.nextID()
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	b.images[img.ID] = *img
	return nil
}

func (b *Backend) GetMarkerImage(_ context.Context, id uint) (core.MarkerImage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	img, ok := b.images[id]
	if !ok {
		return core.MarkerImage{}, notFound("marker image", id)
	}
	return img, nil
}

func (b *Backend) ListMarkerImages(_ context.Context, markerID uint) ([]core.MarkerImage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedValues(b.images,
		func(img core.MarkerImage) bool { return img.MarkerID == markerID },
		func(img core.MarkerImage) uint { return img.ID }), nil
}

func (b *Backend) DeleteMarkerImage(_ context.Context, id uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.images[id]; !ok {
		return notFound("marker image", id)
	}
	delete(b.images, id)
	return nil
}

func (b *Backend) CountImagesByURL(_ context.Context, url string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n int64
	for _, img := range b.images {
		if img.URL == url {
			n++
		}
	}
	return n, nil
}
