// Package postgres implements the storage.Backend interface on PostgreSQL.
// Queries are shared with the GORM backend; this package owns the connection.
package postgres

import (
	"fmt"

	"github.com/pdf360/planview/internal/database"
	gormstorage "github.com/pdf360/planview/internal/storage/gorm"
	"gorm.io/gorm"
)

// Backend implements storage.Backend using GORM/PostgreSQL.
type Backend struct {
	*gormstorage.Backend
	mgr *database.Manager
	db  *gorm.DB
}

// New creates a new Postgres storage backend. If db is nil, Init connects with the db.* settings.
func New(mgr *database.Manager, db *gorm.DB) *Backend {
	return &Backend{mgr: mgr, db: db}
}

// Init connects if needed and migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil {
		db, err := b.mgr.GetPostgresDB()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.db = db
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: b.db, Database: b.mgr})
	return b.Backend.Init()
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
