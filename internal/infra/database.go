package infra

import (
	"fmt"
	"time"

	"parkingcash/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx and brings the schema up
// to date (see RunMigrations).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
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
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations runs AutoMigrate for every table the register touches, then
// the idempotent patches AutoMigrate can't express.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Vehicle{},
		&model.Stay{},
		&model.Product{},
		&model.CashSession{},
		&model.CashTransaction{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL: partial indexes and CHECK
// constraints. Each statement is guarded so re-running is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one open session. The cash service maps a 23505 on this
		// index to a conflict.
		{"single open session", `
CREATE UNIQUE INDEX IF NOT EXISTS uq_cash_sessions_single_open
    ON cash_sessions (status) WHERE status = 'open'`},

		{"cash_sessions status check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cash_sessions_status') THEN
    ALTER TABLE cash_sessions
      ADD CONSTRAINT chk_cash_sessions_status CHECK (status IN ('open', 'closed'));
  END IF;
END $$`},

		{"cash_transactions type check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cash_transactions_type') THEN
    ALTER TABLE cash_transactions
      ADD CONSTRAINT chk_cash_transactions_type CHECK (transaction_type IN
        ('initial', 'checkout', 'prepayment', 'product_sale', 'withdrawal', 'adjustment'));
  END IF;
END $$`},

		{"cash_transactions payment method check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cash_transactions_method') THEN
    ALTER TABLE cash_transactions
      ADD CONSTRAINT chk_cash_transactions_method CHECK (payment_method IN ('cash', 'card', 'transfer'));
  END IF;
END $$`},

		// Partial indexes backing the two pending-list queries.
		{"pending prepayments index", `
CREATE INDEX IF NOT EXISTS idx_stays_pending_prepayment
    ON stays (check_in_time)
    WHERE status = 'active' AND prepaid_amount IS NOT NULL AND prepayment_cash_registered = false`},
		{"pending checkouts index", `
CREATE INDEX IF NOT EXISTS idx_stays_pending_checkout
    ON stays (check_out_time)
    WHERE status = 'completed' AND final_price IS NOT NULL AND cash_registered = false`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
