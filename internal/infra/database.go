package infra

import (
	"fmt"

	"farmapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and applies the
// schema according to mode: "sql" runs the embedded golang-migrate files,
// "auto" falls back to GORM AutoMigrate (dev convenience).
func NewDatabase(dsn, mode string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	switch mode {
	case "auto":
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("AutoMigrate: %w", err)
		}
	default:
		if err := RunMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations: %w", err)
		}
	}

	return db, nil
}

// Models lists every persisted entity in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.Sale{},
		&model.SaleItem{},
		&model.StockMovement{},
		&model.AuditLog{},
	}
}

// AutoMigrate creates / updates all tables from the GORM models.
// Used by the "auto" mode and by package tests running on SQLite.
func AutoMigrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}
