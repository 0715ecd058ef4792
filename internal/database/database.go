package database

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pdf360/planview/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Manager opens the relational store and keeps its schema current.
type Manager struct {
	Logger zerolog.Logger
}

// NewManager creates a manager logging to log. Gorm statements go to the same logger.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

func (m *Manager) gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newGormLogger(m.Logger),
	}
}

// PostgresDSN builds a key=value connection string from the db.* config keys.
func PostgresDSN() string {
	pairs := []struct{ key, value string }{
		{"host", viper.GetString("db.host")},
		{"port", viper.GetString("db.port")},
		{"user", viper.GetString("db.username")},
		{"password", viper.GetString("db.password")},
		{"dbname", viper.GetString("db.database")},
		{"sslmode", viper.GetString("db.sslMode")},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.key == "sslmode" && p.value == "" {
			p.value = "disable"
		}
		parts = append(parts, p.key+"="+dsnValue(p.value))
	}
	return strings.Join(parts, " ")
}

// dsnValue quotes values libpq would otherwise split or misread.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// GetPostgresDB returns a validated connection to the Postgres database.
func (m *Manager) GetPostgresDB() (*gorm.DB, error) {
	m.Logger.Debug().
		Str("host", viper.GetString("db.host")).
		Str("database", viper.GetString("db.database")).
		Msg("Connecting to Postgres DB")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(),
		PreferSimpleProtocol: true,
	}), m.gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	m.Logger.Info().Msg("Connected to database")
	return db, nil
}

// GetSqliteDB opens the SQLite database at path, or a private in-memory one when path is empty.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		// named so that separate managers never share one in-memory database
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}

	cfg := m.gormConfig()
	cfg.PrepareStmt = true
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}

	// a shared in-memory database lives as long as one connection does
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA foreign_keys = ON;"}
	if path == "" {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = MEMORY;",
			"PRAGMA synchronous = OFF;",
			"PRAGMA temp_store = MEMORY;",
		)
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting %q: %w", pragma, err)
		}
	}

	if path == "" {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}
	return db, nil
}

// Setup migrates the schema.
func (m *Manager) Setup(db *gorm.DB) error {
	m.Logger.Info().Str("dialect", db.Dialector.Name()).Msg("Migrating schema")
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryDBToDisk writes a consistent copy of db to path. The previous dump is
// only replaced once the new one is complete.
func (m *Manager) DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing stale temp dump: %w", err)
	}

	start := time.Now()
	if err := db.Exec("VACUUM INTO ?", tmp).Error; err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing DB dump: %w", err)
	}

	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped memory DB to disk")
	return nil
}
