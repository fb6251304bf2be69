package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liamashdown/cryptoguard/internal/config"
	"github.com/liamashdown/cryptoguard/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector, driver := Dialector(cfg.DatabaseDSN)
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	if driver == "sqlite" {
		// a second connection to :memory: would see an empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
		sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
		sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.WithField("driver", driver).Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// Dialector picks the GORM driver from the DSN scheme
func Dialector(dsn string) (gorm.Dialector, string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), "postgres"
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), "sqlite"
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), "sqlite"
	default:
		return mysql.Open(dsn), "mysql"
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity for the readiness check
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs GORM auto-migration
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AnalysisRecord{},
		&AlertRecord{},
	)
}

// InsertAnalysis appends a report to the history
func (db *DB) InsertAnalysis(ctx context.Context, record *AnalysisRecord) error {
	start := time.Now()
	err := db.conn.WithContext(ctx).Create(record).Error
	metrics.RecordDatabaseQuery("insert_analysis", time.Since(start), err)
	return err
}

// ListAnalyses returns the most recent reports for an address, newest first
func (db *DB) ListAnalyses(ctx context.Context, kind, address string, limit int) ([]AnalysisRecord, error) {
	start := time.Now()
	var records []AnalysisRecord
	err := db.conn.WithContext(ctx).
		Where("kind = ? AND address = ?", kind, address).
		Order("created_ts DESC").
		Limit(limit).
		Find(&records).Error
	metrics.RecordDatabaseQuery("list_analyses", time.Since(start), err)
	return records, err
}

// InsertAlert records a sent alert
func (db *DB) InsertAlert(ctx context.Context, alert *AlertRecord) (string, error) {
	start := time.Now()
	err := db.conn.WithContext(ctx).Create(alert).Error
	metrics.RecordDatabaseQuery("insert_alert", time.Since(start), err)
	if err != nil {
		return "", err
	}
	return alert.ID, nil
}

// GetLastAlertForAddress retrieves the most recent alert for an address
func (db *DB) GetLastAlertForAddress(ctx context.Context, address string) (*AlertRecord, error) {
	start := time.Now()
	var alert AlertRecord
	result := db.conn.WithContext(ctx).
		Where("address = ?", address).
		Order("created_ts DESC").
		First(&alert)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		metrics.RecordDatabaseQuery("last_alert", time.Since(start), nil)
		return nil, nil
	}
	metrics.RecordDatabaseQuery("last_alert", time.Since(start), result.Error)
	if result.Error != nil {
		return nil, result.Error
	}
	return &alert, nil
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
