// Package catalog manages projects, their folders and the plan documents attached to them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/pdf360/planview/internal/cache"
	"github.com/pdf360/planview/internal/files"
	"github.com/pdf360/planview/internal/storage"
	"github.com/pdf360/planview/pkg/core"
)

// ErrInvalidName is returned for empty project, folder or plan names
var ErrInvalidName = errors.New("invalid name")

// Dependencies holds all dependencies for the catalog.
type Dependencies struct {
	Store  storage.Backend
	Files  *files.Store
	Cache  cache.MarkerLists
	Logger *slog.Logger
}

// Catalog implements project and plan operations.
type Catalog struct {
	deps Dependencies
}

// New creates a catalog
func New(deps Dependencies) *Catalog {
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Catalog{deps: deps}
}

// folderName turns a display name into a single path segment
func folderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	if name == "" || name == "." || name == ".." || name == files.RecycleFolder {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// CreateProject registers a project and creates its folder. An empty folder derives from the name.
func (c *Catalog) CreateProject(ctx context.Context, name, folder string) (core.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Project{}, fmt.Errorf("%w: empty project name", ErrInvalidName)
	}
	if folder == "" {
		folder = name
	}
	folder, err := folderName(folder)
	if err != nil {
		return core.Project{}, err
	}

	p := core.Project{Name: name, Folder: folder}
	if err := c.deps.Store.CreateProject(ctx, &p); err != nil {
		return core.Project{}, err
	}
	if err := c.deps.Files.EnsureFolder(folder); err != nil {
		_ = c.deps.Store.DeleteProject(ctx, p.ID)
		return core.Project{}, err
	}
	c.deps.Logger.InfoContext(ctx, "Project created", "projectId", p.ID, "folder", folder)
	return p, nil
}

func (c *Catalog) GetProject(ctx context.Context, id uint) (core.Project, error) {
	return c.deps.Store.GetProject(ctx, id)
}

func (c *Catalog) ListProjects(ctx context.Context) ([]core.Project, error) {
	return c.deps.Store.ListProjects(ctx)
}

// RenameProject changes the display name. The folder keeps its name.
func (c *Catalog) RenameProject(ctx context.Context, id uint, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty project name", ErrInvalidName)
	}
	return c.deps.Store.RenameProject(ctx, id, name)
}

// DeleteProject removes the project with everything in it and recycles its folder.
func (c *Catalog) DeleteProject(ctx context.Context, id uint) error {
	p, err := c.deps.Store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	plans, err := c.deps.Store.ListPlans(ctx, id)
	if err != nil {
		return err
	}
	if err := c.deps.Store.DeleteProject(ctx, id); err != nil {
		return err
	}
	for _, plan := range plans {
		c.invalidate(ctx, plan.ID)
	}
	if _, err := c.deps.Files.Recycle(p.Folder); err != nil && !errors.Is(err, files.ErrNotFound) {
		c.deps.Logger.WarnContext(ctx, "Could not recycle project folder", "folder", p.Folder, "error", err)
	}
	c.deps.Logger.InfoContext(ctx, "Project deleted", "projectId", id, "plans", len(plans))
	return nil
}

// CreateSubfolder adds a folder directly inside the project folder
func (c *Catalog) CreateSubfolder(ctx context.Context, projectID uint, name string) (string, error) {
	p, err := c.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	name, err = folderName(name)
	if err != nil {
		return "", err
	}
	folder := files.Join(p.Folder, name)
	if err := c.deps.Files.EnsureFolder(folder); err != nil {
		return "", err
	}
	return folder, nil
}

// Subfolders lists the folders directly inside the project folder
func (c *Catalog) Subfolders(ctx context.Context, projectID uint) ([]string, error) {
	p, err := c.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	names, err := c.deps.Files.Subfolders(p.Folder)
	if errors.Is(err, files.ErrNotFound) {
		return nil, nil
	}
	return names, err
}

// Document is a plan file sent by the client
type Document struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// AddPlan stores the document under <project>/<subfolder>/ and registers the plan.
func (c *Catalog) AddPlan(ctx context.Context, projectID uint, title, subfolder string, doc Document) (core.Plan, error) {
	p, err := c.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		return core.Plan{}, err
	}
	if doc.Content == nil {
		return core.Plan{}, errors.New("no plan content")
	}
	if subfolder != "" {
		if subfolder, err = folderName(subfolder); err != nil {
			return core.Plan{}, err
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(path.Base(doc.FileName), path.Ext(doc.FileName))
	}
	contentType := doc.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(path.Ext(doc.FileName)); byExt != "" {
			contentType = byExt
		}
	}

	counter := &countingReader{r: doc.Content}
	stored, err := c.deps.Files.Upload(files.Join(p.Folder, subfolder), doc.FileName, counter)
	if err != nil {
		return core.Plan{}, err
	}

	plan := core.Plan{
		ProjectID:   projectID,
		Title:       title,
		Subfolder:   subfolder,
		FileName:    path.Base(stored),
		Path:        stored,
		ContentType: contentType,
		Size:        counter.n,
		Metadata: map[string]any{
			"originalName": doc.FileName,
			"uploadedAt":   time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := c.deps.Store.CreatePlan(ctx, &plan); err != nil {
		_, _ = c.deps.Files.Recycle(stored)
		return core.Plan{}, err
	}
	c.deps.Logger.InfoContext(ctx, "Plan added", "planId", plan.ID, "projectId", projectID, "path", stored)
	return plan, nil
}

func (c *Catalog) GetPlan(ctx context.Context, id uint) (core.Plan, error) {
	return c.deps.Store.GetPlan(ctx, id)
}

func (c *Catalog) ListPlans(ctx context.Context, projectID uint) ([]core.Plan, error) {
	if _, err := c.deps.Store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return c.deps.Store.ListPlans(ctx, projectID)
}

// OpenPlan returns the plan with its document bytes
func (c *Catalog) OpenPlan(ctx context.Context, id uint) (core.Plan, []byte, error) {
	plan, err := c.deps.Store.GetPlan(ctx, id)
	if err != nil {
		return core.Plan{}, nil, err
	}
	data, err := c.deps.Files.ReadFile(plan.Path)
	if err != nil {
		return core.Plan{}, nil, err
	}
	return plan, data, nil
}

// DeletePlan removes the plan with its markers and recycles the document and unreferenced panoramas.
func (c *Catalog) DeletePlan(ctx context.Context, id uint) error {
	plan, err := c.deps.Store.GetPlan(ctx, id)
	if err != nil {
		return err
	}

	markers, err := c.deps.Store.ListMarkers(ctx, id)
	if err != nil {
		return err
	}
	var urls []string
	for _, m := range markers {
		images, err := c.deps.Store.ListMarkerImages(ctx, m.ID)
		if err != nil {
			return err
		}
		for _, img := range images {
			urls = append(urls, img.URL)
		}
	}

	if err := c.deps.Store.DeletePlan(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)

	recycled := make(map[string]bool)
	for _, u := range append(urls, plan.Path) {
		if u == "" || recycled[u] {
			continue
		}
		recycled[u] = true
		if n, err := c.deps.Store.CountImagesByURL(ctx, u); err != nil || n > 0 {
			continue
		}
		if _, err := c.deps.Files.Recycle(u); err != nil && !errors.Is(err, files.ErrNotFound) {
			c.deps.Logger.WarnContext(ctx, "Could not recycle document", "path", u, "error", err)
		}
	}
	c.deps.Logger.InfoContext(ctx, "Plan deleted", "planId", id, "markers", len(markers))
	return nil
}

func (c *Catalog) invalidate(ctx context.Context, planID uint) {
	if err := c.deps.Cache.Invalidate(ctx, planID); err != nil {
		c.deps.Logger.WarnContext(ctx, "Marker cache invalidation failed", "planId", planID, "error", err)
	}
}
