package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
)

// gormLogWriter adapts the application logger to gorm's logger.Writer
type gormLogWriter struct {
	log logger.Logger
}

func (w *gormLogWriter) Printf(format string, args ...interface{}) {
	w.log.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Store owns the database handle and the repositories built on it.
// The content table is written only through Reels.Upsert, Reels.Reattribute
// and the Reels transcript writers.
type Store struct {
	db *gorm.DB

	Projects *ProjectRepository
	Sources  *SourceRepository
	Reels    *ReelRepository
	Reports  *ReportRepository
}

// Open connects to Postgres using cfg.DSN
func Open(cfg config.DatabaseConfig, log logger.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errs.Validation("database dsn is not configured")
	}
	return OpenDialector(postgres.Open(cfg.DSN), cfg, log)
}

// OpenDialector opens the store on any gorm dialector; tests use SQLite
func OpenDialector(dialector gorm.Dialector, cfg config.DatabaseConfig, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "store")

	gormLog := gormlogger.New(
		&gormLogWriter{log: log},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLog,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errs.Storage("failed to connect to database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errs.Storage("failed to get sql.DB", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errs.Storage("failed to ping database", err)
	}

	log.Debug("Database connection established")
	return New(db), nil
}

// New wraps an existing gorm handle
func New(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Projects: &ProjectRepository{db: db},
		Sources:  &SourceRepository{db: db},
		Reels:    &ReelRepository{db: db},
		Reports:  &ReportRepository{db: db},
	}
}

// Migrate creates or updates the projects, sources and reels tables
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.Project{}, &models.Source{}, &models.Reel{}); err != nil {
		return errs.Storage("migration failed", err)
	}
	return nil
}

// Health pings the database
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errs.Storage("failed to get sql.DB", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errs.Storage("database unreachable", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
