// Package db opens the gorm connection and applies the schema.
package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/diewo77/labdesk/internal/config"
	"github.com/diewo77/labdesk/internal/models"
)

var passwordPattern = regexp.MustCompile(`(password=)([^\s]+)`)

// Open connects to the configured database. Postgres connections are retried
// to give the server time to start.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Silent
	if cfg.Debug {
		level = gormlogger.Info
	}
	gcfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	}

	if !cfg.IsPostgres() {
		db, err := gorm.Open(sqlite.Open(SQLiteDSN(cfg.DSN())), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN(), err)
		}
		return db, nil
	}

	dsn := NormalizeDSN(cfg.DSN())
	var db *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
		if err == nil {
			break
		}
		log.Warn("retrying database connection", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Info("database connected", zap.String("dsn", MaskDSN(dsn)))
	return db, nil
}

// MaskDSN hides the password of a key=value or URL DSN.
func MaskDSN(dsn string) string {
	masked := passwordPattern.ReplaceAllString(dsn, `${1}***`)
	if i := strings.Index(masked, "://"); i >= 0 {
		if at := strings.Index(masked, "@"); at > i {
			if colon := strings.Index(masked[i+3:at], ":"); colon >= 0 {
				masked = masked[:i+3+colon+1] + "***" + masked[at:]
			}
		}
	}
	return masked
}

// Migrate applies the schema. With useSQL and postgres the embedded SQL
// migrations run through golang-migrate; otherwise gorm AutoMigrate is used.
func Migrate(db *gorm.DB, cfg config.DatabaseConfig, useSQL bool) error {
	if useSQL && cfg.IsPostgres() {
		if err := runSQLMigrations(ToURLDSN(NormalizeDSN(cfg.DSN()))); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range models.All() {
			if err := db.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}
	for _, table := range []string{"users", "profiles", "client_sequences", "lab_test_requests", "lab_test_items", "consultancy_requests"} {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// Seed prepares reference rows. The client sequence starts after the
// highest client id already issued so imported profiles keep their ids.
func Seed(db *gorm.DB) error {
	var ids []string
	if err := db.Model(&models.Profile{}).Pluck("client_id", &ids).Error; err != nil {
		return fmt.Errorf("read client ids: %w", err)
	}
	var highest int64
	for _, id := range ids {
		var n int64
		if _, err := fmt.Sscanf(id, "%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return models.SeedClientSequence(db, highest)
}

// IsPostgres reports whether db talks to postgres.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// AdvisoryLock takes a transaction scoped advisory lock on postgres.
// SQLite serializes writers itself, so it is a no-op there.
func AdvisoryLock(tx *gorm.DB, key int64) error {
	if !IsPostgres(tx) {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", key).Error
}

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
