package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/melafrancom/erp-bulonera/internal/model"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies any idempotent SQL patches that GORM
// cannot express (sequences, partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
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

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations applies AutoMigrate plus the SQL schema patches. Also used by
// integration tests against a throwaway database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Customer{},
		&model.Product{},
		&model.Quote{},
		&model.QuoteItem{},
		&model.Sale{},
		&model.SaleItem{},
		&model.QuoteConversion{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// fully handle on its own. Each statement uses IF NOT EXISTS / existence-check
// guards so re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Document-number sequences backing NextNumber on both repositories.
		{"create quotes_number_seq",
			`CREATE SEQUENCE IF NOT EXISTS quotes_number_seq START 1`},
		{"create sales_number_seq",
			`CREATE SEQUENCE IF NOT EXISTS sales_number_seq START 1`},

		// local_id uniqueness only applies to non-null values: server-created
		// sales never carry one. GORM cannot express a partial unique index.
		{"create partial unique index on sales.local_id", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uniq_sales_local_id') THEN
    CREATE UNIQUE INDEX uniq_sales_local_id
        ON sales (local_id)
        WHERE local_id IS NOT NULL;
  END IF;
END $$`},

		// Partial index for the pending-sync listing.
		{"create partial index for pending sync", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_sales_sync_backlog') THEN
    CREATE INDEX idx_sales_sync_backlog
        ON sales (created_by_id, created_at DESC)
        WHERE sync_status IN ('pending', 'error');
  END IF;
END $$`},

		// Partial index for the quote expiry sweep.
		{"create partial index for quote expiry", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_quotes_expiry_sweep') THEN
    CREATE INDEX idx_quotes_expiry_sweep
        ON quotes (valid_until)
        WHERE status = 'sent';
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
