package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/domain/clinic"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Collaborators (lookups only)
		// =========================
		&clinic.Patient{},
		&clinic.TreatmentPlan{},

		// =========================
		// Billing core
		// =========================
		&billing.Budget{},
		&billing.PaymentLedger{},
		&billing.LedgerEntry{},
		&billing.TransactionEntry{},
		&billing.PaymentEvent{},
	)
}

func EnsureBillingIndexes(db *gorm.DB) error {
	// One budget per treatment plan.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_budget_treatment_plan
		ON budget(treatment_plan_id)
		WHERE treatment_plan_id IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_budget_treatment_plan: %w", err)
	}

	// Dedupe client retries for payment registration.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entry_idempotency
		ON ledger_entry(ledger_id, idempotency_key)
		WHERE idempotency_key <> '';
	`).Error; err != nil {
		return fmt.Errorf("create idx_ledger_entry_idempotency: %w", err)
	}

	// Period reports scan the log by date.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transaction_log_fecha
		ON transaction_log(fecha);
	`).Error; err != nil {
		return fmt.Errorf("create idx_transaction_log_fecha: %w", err)
	}

	return nil
}
