// Package database opens the GORM connections used for recording sessions
// and maintains local SQLite dumps.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// memoryDSN uses a shared cache so every pooled connection sees the same tables.
const memoryDSN = "file::memory:?cache=shared"

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
	"PRAGMA page_size = 32768;",
}

// Manager owns the recording database connection.
type Manager struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	// Ready is set once Connect succeeded and cleared by a failed Setup.
	Ready bool
	// InMemory is set when the DB lives in memory and must be dumped to DumpPath.
	InMemory bool
	DumpPath string

	cfg config.DBConfig
	log zerolog.Logger
}

func NewManager(cfg config.DBConfig, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, log: log.With().Str("component", "database").Logger()}
}

// Connect opens the database for driver: "postgres", "sqlite" (in memory,
// dumped to db.path) or "sqlite-file" (db.path on disk). An unreachable
// Postgres server falls back to the in-memory SQLite database.
func (m *Manager) Connect(driver string) error {
	db, err := m.open(driver)
	if err != nil && driver == "postgres" {
		m.log.Error().Err(err).Str("host", m.cfg.Host).Msg("Postgres unreachable, recording to in-memory SQLite")
		db, err = m.open("sqlite")
	}
	if err != nil {
		return err
	}

	m.DB = db
	if m.SqlDB, err = db.DB(); err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	m.Ready = true
	m.log.Info().Str("driver", driver).Bool("inMemory", m.InMemory).Msg("Database connected")
	return nil
}

func (m *Manager) open(driver string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "postgres":
		db, err = OpenPostgres(m.cfg, m.log)
	case "sqlite":
		m.InMemory = true
		m.DumpPath = m.cfg.Path
		db, err = OpenSqlite("", m.log)
	case "sqlite-file":
		db, err = OpenSqlite(m.cfg.Path, m.log)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate %s connection: %w", driver, err)
	}
	if driver == "postgres" {
		sqlDB.SetMaxOpenConns(10)
	}
	return db, nil
}

// Setup migrates all tables.
func (m *Manager) Setup() error {
	if err := Migrate(m.DB); err != nil {
		m.Ready = false
		return err
	}
	m.log.Debug().Int("tables", len(model.DatabaseModels)).Msg("Schema migrated")
	return nil
}

// DumpMemoryToDisk snapshots the in-memory database to DumpPath.
func (m *Manager) DumpMemoryToDisk() error {
	return VacuumInto(m.DB, m.DumpPath)
}

func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// Migrate creates or updates every table in model.DatabaseModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// BackupPaths lists the *.db files directly inside dir.
func BackupPaths(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.db"))
	if err != nil {
		return nil, err
	}
	paths := matches[:0]
	for _, p := range matches {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// PostgresDSN builds a key/value connection string, quoting values that
// contain spaces or quotes.
func PostgresDSN(cfg config.DBConfig) string {
	pairs := [][2]string{
		{"host", cfg.Host},
		{"port", cfg.Port},
		{"user", cfg.Username},
		{"password", cfg.Password},
		{"dbname", cfg.Database},
		{"sslmode", "disable"},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		parts = append(parts, p[0]+"="+quoteDSN(p[1]))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// OpenPostgres connects to the Postgres server described by cfg.
func OpenPostgres(cfg config.DBConfig, log zerolog.Logger) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 NewGormLogger(log),
	})
}

// OpenSqlite opens path, or the shared in-memory database when path is empty.
func OpenSqlite(path string, log zerolog.Logger) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = memoryDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 NewGormLogger(log),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting %q: %w", pragma, err)
		}
	}
	return db, nil
}

// VacuumInto writes a consistent copy of db to path, replacing any file there.
func VacuumInto(db *gorm.DB, path string) error {
	if path == "" {
		return fmt.Errorf("sqlite dump path not set")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing existing DB file: %w", err)
	}
	if err := db.Exec("VACUUM INTO ?", "file:"+path).Error; err != nil {
		return fmt.Errorf("error dumping database to %s: %w", path, err)
	}
	return nil
}
