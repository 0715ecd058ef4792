// Package markers manages markers on plans and the panoramas attached to them.
package markers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pdf360/planview/internal/cache"
	"github.com/pdf360/planview/internal/files"
	"github.com/pdf360/planview/internal/geo"
	"github.com/pdf360/planview/internal/storage"
	"github.com/pdf360/planview/pkg/core"
)

// IconPrefix names markers created without a title
const IconPrefix = "Icon_"

// Upload is a panorama file sent by the client
type Upload struct {
	FileName string
	Content  io.Reader
	// Subfolder overrides the marker title as the destination folder inside the project
	Subfolder string
}

// Dependencies holds all dependencies for the marker service.
type Dependencies struct {
	Store  storage.Backend
	Files  *files.Store
	Cache  cache.MarkerLists
	Logger *slog.Logger
}

// Service implements marker and marker-image operations.
type Service struct {
	deps Dependencies
}

// New creates a marker service
func New(deps Dependencies) *Service {
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// ListMarkers returns the plan's markers with their primary image URL filled in.
func (s *Service) ListMarkers(ctx context.Context, planID uint) ([]core.Marker, error) {
	if cached, ok, err := s.deps.Cache.Get(ctx, planID); err != nil {
		s.deps.Logger.WarnContext(ctx, "Marker cache read failed", "planId", planID, "error", err)
	} else if ok {
		return cached, nil
	}

	list, err := s.deps.Store.ListMarkers(ctx, planID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		images, err := s.deps.Store.ListMarkerImages(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		if len(images) > 0 {
			list[i].ImageURL = images[0].URL
		}
	}

	if err := s.deps.Cache.Set(ctx, planID, list); err != nil {
		s.deps.Logger.WarnContext(ctx, "Marker cache write failed", "planId", planID, "error", err)
	}
	return list, nil
}

// NextIconTitle returns Icon_N where N is one more than the highest number used by a marker
// title on the plan or a folder in the project.
func (s *Service) NextIconTitle(ctx context.Context, planID uint) (string, error) {
	plan, project, err := s.planAndProject(ctx, planID)
	if err != nil {
		return "", err
	}

	highest := 0
	consider := func(name string) {
		if n, ok := iconNumber(name); ok && n > highest {
			highest = n
		}
	}

	existing, err := s.deps.Store.ListMarkers(ctx, plan.ID)
	if err != nil {
		return "", err
	}
	for _, m := range existing {
		consider(m.Title)
	}

	folders, err := s.deps.Files.Subfolders(project.Folder)
	if err != nil && !errors.Is(err, files.ErrNotFound) {
		return "", err
	}
	for _, f := range folders {
		consider(f)
	}
	return IconPrefix + strconv.Itoa(highest+1), nil
}

func iconNumber(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, IconPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// AddMarker uploads the panorama and creates a marker in the middle of the plan with one image.
func (s *Service) AddMarker(ctx context.Context, planID uint, title string, up Upload) (core.Marker, error) {
	_, project, err := s.planAndProject(ctx, planID)
	if err != nil {
		return core.Marker{}, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		if title, err = s.NextIconTitle(ctx, planID); err != nil {
			return core.Marker{}, err
		}
	}

	path, err := s.upload(project, title, up)
	if err != nil {
		return core.Marker{}, err
	}

	m := core.Marker{
		PlanID:   planID,
		XPercent: core.DefaultMarkerPosition,
		YPercent: core.DefaultMarkerPosition,
		Title:    title,
	}
	if err := s.deps.Store.CreateMarker(ctx, &m); err != nil {
		s.recycle(path)
		return core.Marker{}, fmt.Errorf("failed to create marker: %w", err)
	}

	img := core.MarkerImage{MarkerID: m.ID, FileName: up.FileName, URL: path}
	if err := s.deps.Store.CreateMarkerImage(ctx, &img); err != nil {
		return core.Marker{}, fmt.Errorf("failed to attach image to marker %d: %w", m.ID, err)
	}
	m.ImageURL = path

	s.invalidate(ctx, planID)
	s.deps.Logger.InfoContext(ctx, "Marker created", "markerId", m.ID, "planId", planID, "title", title)
	return m, nil
}

// UpdateMarkerPosition stores a new percent position, clamped to the plan.
func (s *Service) UpdateMarkerPosition(ctx context.Context, id uint, x, y float64) error {
	m, err := s.deps.Store.GetMarker(ctx, id)
	if err != nil {
		return err
	}
	x, y = geo.Clamp(x, 0, 1), geo.Clamp(y, 0, 1)
	if err := s.deps.Store.UpdateMarkerPosition(ctx, id, x, y); err != nil {
		return err
	}
	s.invalidate(ctx, m.PlanID)
	return nil
}

// DeleteMarker removes the marker with all its image rows and recycles files no other row uses.
func (s *Service) DeleteMarker(ctx context.Context, id uint) error {
	m, err := s.deps.Store.GetMarker(ctx, id)
	if err != nil {
		return err
	}
	images, err := s.deps.Store.ListMarkerImages(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deps.Store.DeleteMarker(ctx, id); err != nil {
		return err
	}

	seen := make(map[string]bool, len(images))
	for _, img := range images {
		if seen[img.URL] {
			continue
		}
		seen[img.URL] = true
		s.recycleIfUnreferenced(ctx, img.URL)
	}

	s.invalidate(ctx, m.PlanID)
	s.deps.Logger.InfoContext(ctx, "Marker deleted", "markerId", id, "planId", m.PlanID, "images", len(images))
	return nil
}

// AddMarkerImage uploads another panorama for an existing marker.
func (s *Service) AddMarkerImage(ctx context.Context, markerID uint, up Upload) (core.MarkerImage, error) {
	m, err := s.deps.Store.GetMarker(ctx, markerID)
	if err != nil {
		return core.MarkerImage{}, err
	}
	_, project, err := s.planAndProject(ctx, m.PlanID)
	if err != nil {
		return core.MarkerImage{}, err
	}

	path, err := s.upload(project, m.Title, up)
	if err != nil {
		return core.MarkerImage{}, err
	}
	img := core.MarkerImage{MarkerID: markerID, FileName: up.FileName, URL: path}
	if err := s.deps.Store.CreateMarkerImage(ctx, &img); err != nil {
		s.recycle(path)
		return core.MarkerImage{}, fmt.Errorf("failed to attach image to marker %d: %w", markerID, err)
	}

	s.invalidate(ctx, m.PlanID)
	return img, nil
}

// ListMarkerImages returns the marker's images ordered by id.
func (s *Service) ListMarkerImages(ctx context.Context, markerID uint) ([]core.MarkerImage, error) {
	return s.deps.Store.ListMarkerImages(ctx, markerID)
}

// DeleteMarkerImage removes one image row and recycles its file when nothing else references it.
func (s *Service) DeleteMarkerImage(ctx context.Context, imageID uint) error {
	img, err := s.deps.Store.GetMarkerImage(ctx, imageID)
	if err != nil {
		return err
	}
	if err := s.deps.Store.DeleteMarkerImage(ctx, imageID); err != nil {
		return err
	}
	s.recycleIfUnreferenced(ctx, img.URL)

	if m, err := s.deps.Store.GetMarker(ctx, img.MarkerID); err == nil {
		s.invalidate(ctx, m.PlanID)
	}
	return nil
}

func (s *Service) planAndProject(ctx context.Context, planID uint) (core.Plan, core.Project, error) {
	plan, err := s.deps.Store.GetPlan(ctx, planID)
	if err != nil {
		return core.Plan{}, core.Project{}, err
	}
	project, err := s.deps.Store.GetProject(ctx, plan.ProjectID)
	if err != nil {
		return core.Plan{}, core.Project{}, err
	}
	return plan, project, nil
}

func (s *Service) upload(project core.Project, title string, up Upload) (string, error) {
	if up.Content == nil {
		return "", errors.New("no image content")
	}
	folder := up.Subfolder
	if folder == "" {
		folder = title
	}
	path, err := s.deps.Files.Upload(files.Join(project.Folder, folder), up.FileName, up.Content)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return path, nil
}

func (s *Service) recycleIfUnreferenced(ctx context.Context, url string) {
	if url == "" {
		return
	}
	n, err := s.deps.Store.CountImagesByURL(ctx, url)
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "Could not count image references", "url", url, "error", err)
		return
	}
	if n == 0 {
		s.recycle(url)
	}
}

func (s *Service) recycle(path string) {
	if _, err := s.deps.Files.Recycle(path); err != nil && !errors.Is(err, files.ErrNotFound) {
		s.deps.Logger.Warn("Could not recycle document", "path", path, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, planID uint) {
	if err := s.deps.Cache.Invalidate(ctx, planID); err != nil {
		s.deps.Logger.WarnContext(ctx, "Marker cache invalidation failed", "planId", planID, "error", err)
	}
}
