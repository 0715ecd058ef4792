// Package gormstorage implements the storage.Backend interface on top of GORM.
// The sqlite and postgres backends embed it and only add connection handling.
package gormstorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdf360/planview/internal/database"
	"github.com/pdf360/planview/internal/model"
	"github.com/pdf360/planview/internal/model/convert"
	"github.com/pdf360/planview/internal/storage"
	"github.com/pdf360/planview/pkg/core"
	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB       *gorm.DB
	Database *database.Manager
}

// Backend implements storage.Backend with GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	return b.deps.Database.Setup(b.deps.DB)
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) db(ctx context.Context) *gorm.DB {
	return b.deps.DB.WithContext(ctx)
}

// wrap maps gorm's not-found error onto storage.ErrNotFound
func wrap(kind string, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, storage.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", kind, id, err)
}

func affected(kind string, id uint, res *gorm.DB) error {
	if res.Error != nil {
		return wrap(kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap(kind, id, gorm.ErrRecordNotFound)
	}
	return nil
}

func exists[T any](tx *gorm.DB, kind string, id uint) error {
	var n int64
	if err := tx.Model(new(T)).Where("id = ?", id).Count(&n).Error; err != nil {
		return wrap(kind, id, err)
	}
	if n == 0 {
		return wrap(kind, id, gorm.ErrRecordNotFound)
	}
	return nil
}

// CreateProject inserts a project and assigns its ID.
func (b *Backend) CreateProject(ctx context.Context, p *core.Project) error {
	row := convert.CoreToProject(*p)
	if err := b.db(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	p.ID, p.CreatedAt = row.ID, row.CreatedAt
	return nil
}

func (b *Backend) GetProject(ctx context.Context, id uint) (core.Project, error) {
	var row model.Project
	if err := b.db(ctx).First(&row, id).Error; err != nil {
		return core.Project{}, wrap("project", id, err)
	}
	return convert.ProjectToCore(row), nil
}

func (b *Backend) ListProjects(ctx context.Context) ([]core.Project, error) {
	var rows []model.Project
	if err := b.db(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]core.Project, len(rows))
	for i, r := range rows {
		out[i] = convert.ProjectToCore(r)
	}
	return out, nil
}

func (b *Backend) RenameProject(ctx context.Context, id uint, name string) error {
	res := b.db(ctx).Model(&model.Project{}).Where("id = ?", id).Update("name", name)
	return affected("project", id, res)
}

// DeleteProject removes a project with its plans, markers and images in one transaction.
func (b *Backend) DeleteProject(ctx context.Context, id uint) error {
	return b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists[model.Project](tx, "project", id); err != nil {
			return err
		}
		plans := tx.Model(&model.Plan{}).Select("id").Where("project_id = ?", id)
		if err := deleteMarkersWhere(tx, "plan_id IN (?)", plans); err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.Plan{}).Error; err != nil {
			return fmt.Errorf("failed to delete plans: %w", err)
		}
		return affected("project", id, tx.Unscoped().Delete(&model.Project{}, id))
	})
}

// CreatePlan inserts a plan and assigns its ID.
func (b *Backend) CreatePlan(ctx context.Context, p *core.Plan) error {
	return b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists[model.Project](tx, "project", p.ProjectID); err != nil {
			return err
		}
		row := convert.CoreToPlan(*p)
		if err := tx.Omit("Project").Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert plan: %w", err)
		}
		p.ID, p.CreatedAt = row.ID, row.CreatedAt
		return nil
	})
}

func (b *Backend) GetPlan(ctx context.Context, id uint) (core.Plan, error) {
	var row model.Plan
	if err := b.db(ctx).First(&row, id).Error; err != nil {
		return core.Plan{}, wrap("plan", id, err)
	}
	return convert.PlanToCore(row), nil
}

func (b *Backend) ListPlans(ctx context.Context, projectID uint) ([]core.Plan, error) {
	var rows []model.Plan
	if err := b.db(ctx).Where("project_id = ?", projectID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	out := make([]core.Plan, len(rows))
	for i, r := range rows {
		out[i] = convert.PlanToCore(r)
	}
	return out, nil
}

// DeletePlan removes a plan with its markers and images in one transaction.
func (b *Backend) DeletePlan(ctx context.Context, id uint) error {
	return b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteMarkersWhere(tx, "plan_id = ?", id); err != nil {
			return err
		}
		return affected("plan", id, tx.Delete(&model.Plan{}, id))
	})
}

func deleteMarkersWhere(tx *gorm.DB, query string, args ...any) error {
	markers := tx.Model(&model.Marker{}).Select("id").Where(query, args...)
	if err := tx.Where("marker_id IN (?)", markers).Delete(&model.MarkerImage{}).Error; err != nil {
		return fmt.Errorf("failed to delete marker images: %w", err)
	}
	if err := tx.Where(query, args...).Delete(&model.Marker{}).Error; err != nil {
		return fmt.Errorf("failed to delete markers: %w", err)
	}
	return nil
}

// CreateMarker inserts a marker and assigns its ID.
func (b *Backend) CreateMarker(ctx context.Context, m *core.Marker) error {
	return b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists[model.Plan](tx, "plan", m.PlanID); err != nil {
			return err
		}
		row := convert.CoreToMarker(*m)
		if err := tx.Omit("Plan").Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert marker: %w", err)
		}
		m.ID = row.ID
		return nil
	})
}

func (b *Backend) GetMarker(ctx context.Context, id uint) (core.Marker, error) {
	var row model.Marker
	if err := b.db(ctx).First(&row, id).Error; err != nil {
		return core.Marker{}, wrap("marker", id, err)
	}
	return convert.MarkerToCore(row), nil
}

func (b *Backend) ListMarkers(ctx context.Context, planID uint) ([]core.Marker, error) {
	var rows []model.Marker
	if err := b.db(ctx).Where("plan_id = ?", planID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	out := make([]core.Marker, len(rows))
	for i, r := range rows {
		out[i] = convert.MarkerToCore(r)
	}
	return out, nil
}

func (b *Backend) UpdateMarkerPosition(ctx context.Context, id uint, x, y float64) error {
	return b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists[model.Marker](tx, "marker", id); err != nil {
			return err
		}
		// an unchanged position reports zero rows affected on some drivers
		err := tx.Model(&model.Marker{}).Where("id = ?", id).
			Updates(map[string]any{"x_percent": x, "y_percent": y}).Error
		if err != nil {
			return wrap("marker", id, err)
		}
		return nil
	})
}

// DeleteMarker removes a marker and its image rows.
func (b *Backend) DeleteMarker(ctx context.Context, id uint) error {
	return b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("marker_id = ?", id).Delete(&model.MarkerImage{}).Error; err != nil {
			return fmt.Errorf("failed to delete marker images: %w", err)
		}
		return affected("marker", id, tx.Delete(&model.Marker{}, id))
	})
}

// CreateMarkerImage inserts a marker image and assigns its ID.
func (b *Backend) CreateMarkerImage(ctx context.Context, img *core.MarkerImage) error {
	return b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists[model.Marker](tx, "marker", img.MarkerID); err != nil {
			return err
		}
		row := convert.CoreToMarkerImage(*img)
		if err := tx.Omit("Marker").Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert marker image: %w", err)
		}
		img.ID, img.CreatedAt = row.ID, row.CreatedAt
		return nil
	})
}

func (b *Backend) GetMarkerImage(ctx context.Context, id uint) (core.MarkerImage, error) {
	var row model.MarkerImage
	if err := b.db(ctx).First(&row, id).Error; err != nil {
		return core.MarkerImage{}, wrap("marker image", id, err)
	}
	return convert.MarkerImageToCore(row), nil
}

func (b *Backend) ListMarkerImages(ctx context.Context, markerID uint) ([]core.MarkerImage, error) {
	var rows []model.MarkerImage
	if err := b.db(ctx).Where("marker_id = ?", markerID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list marker images: %w", err)
	}
	out := make([]core.MarkerImage, len(rows))
	for i, r := range rows {
		out[i] = convert.MarkerImageToCore(r)
	}
	return out, nil
}

func (b *Backend) DeleteMarkerImage(ctx context.Context, id uint) error {
	return affected("marker image", id, b.db(ctx).Delete(&model.MarkerImage{}, id))
}

func (b *Backend) CountImagesByURL(ctx context.Context, url string) (int64, error) {
	var n int64
	if err := b.db(ctx).Model(&model.MarkerImage{}).Where("url = ?", url).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count marker images: %w", err)
	}
	return n, nil
}
