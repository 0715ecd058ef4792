// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It embeds the GORM backend. The only SQLite-specific concerns are creating the
// in-memory DB, seeding it from the last dump and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pdf360/planview/internal/config"
	"github.com/pdf360/planview/internal/database"
	gormstorage "github.com/pdf360/planview/internal/storage/gorm"
	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	mgr      *database.Manager
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, mgr *database.Manager) (*Backend, error) {
	db, err := mgr.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Database: mgr}),
		db:       db,
		cfg:      cfg,
		mgr:      mgr,
		stopChan: make(chan struct{}),
	}, nil
}

// Init restores the last dump, migrates the schema and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.restore(); err != nil {
		return err
	}
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the embedded GORM backend.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	if b.cfg.DumpPath != "" {
		if err := b.mgr.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
			b.mgr.Logger.Error().Err(err).Msg("Final dump failed")
		}
	}
	return b.Backend.Close()
}

// Dump writes a point-in-time snapshot to the configured path.
func (b *Backend) Dump() error {
	return b.mgr.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

// restore copies the rows of a previous dump into the in-memory database.
func (b *Backend) restore() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	if _, err := os.Stat(b.cfg.DumpPath); err != nil {
		return nil
	}

	if err := b.db.Exec("ATTACH DATABASE ? AS dump", b.cfg.DumpPath).Error; err != nil {
		return fmt.Errorf("failed to attach dump: %w", err)
	}
	defer b.db.Exec("DETACH DATABASE dump")

	if err := b.Backend.Init(); err != nil {
		return err
	}
	for _, table := range []string{"projects", "plans", "markers", "marker_images"} {
		var n int64
		b.db.Raw("SELECT count(*) FROM dump.sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if n == 0 {
			continue
		}
		if err := b.db.Exec(fmt.Sprintf("INSERT INTO main.%[1]s SELECT * FROM dump.%[1]s", table)).Error; err != nil {
			return fmt.Errorf("failed to restore %s: %w", table, err)
		}
	}
	b.mgr.Logger.Info().Str("path", b.cfg.DumpPath).Msg("Restored SQLite dump")
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.mgr.Logger.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}
