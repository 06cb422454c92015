package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

type LedgerRepo interface {
	Create(dbc dbctx.Context, row *billing.PaymentLedger) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.PaymentLedger, error)
	GetByBudgetAndPhase(dbc dbctx.Context, budgetID uuid.UUID, faseIndex int) (*billing.PaymentLedger, error)
	LockByBudgetAndPhase(dbc dbctx.Context, budgetID uuid.UUID, faseIndex int) (*billing.PaymentLedger, error)
	ListByBudget(dbc dbctx.Context, budgetID uuid.UUID) ([]*billing.PaymentLedger, error)

	AppendEntry(dbc dbctx.Context, entry *billing.LedgerEntry) error
	ListEntries(dbc dbctx.Context, ledgerID uuid.UUID) ([]billing.LedgerEntry, error)
	GetEntryByID(dbc dbctx.Context, ledgerID, entryID uuid.UUID) (*billing.LedgerEntry, error)
	GetEntryByIdempotencyKey(dbc dbctx.Context, ledgerID uuid.UUID, key string) (*billing.LedgerEntry, error)
	UpdateEntryFields(dbc dbctx.Context, entryID uuid.UUID, updates map[string]interface{}) error
	NonVoidedTotal(dbc dbctx.Context, ledgerID uuid.UUID) (float64, error)
	NextSeq(dbc dbctx.Context, ledgerID uuid.UUID) (int64, error)

	DeleteByBudget(dbc dbctx.Context, budgetID uuid.UUID) error
	DeleteAll(dbc dbctx.Context) error
}

type ledgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerRepo(db *gorm.DB, baseLog *logger.Logger) LedgerRepo {
	return &ledgerRepo{db: db, log: baseLog.With("repo", "LedgerRepo")}
}

func (r *ledgerRepo) Create(dbc dbctx.Context, row *billing.PaymentLedger) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Omit("Pagos").Create(row).Error
}

func (r *ledgerRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&billing.PaymentLedger{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *ledgerRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.PaymentLedger, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.PaymentLedger
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *ledgerRepo) GetByBudgetAndPhase(dbc dbctx.Context, budgetID uuid.UUID, faseIndex int) (*billing.PaymentLedger, error) {
	if budgetID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.PaymentLedger
	if err := t.WithContext(dbc.Ctx).
		Where("budget_id = ? AND fase_index = ?", budgetID, faseIndex).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// LockByBudgetAndPhase takes a row lock on the ledger, serializing payment
// registration per phase across concurrent requests.
func (r *ledgerRepo) LockByBudgetAndPhase(dbc dbctx.Context, budgetID uuid.UUID, faseIndex int) (*billing.PaymentLedger, error) {
	if budgetID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.PaymentLedger
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("budget_id = ? AND fase_index = ?", budgetID, faseIndex).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *ledgerRepo) ListByBudget(dbc dbctx.Context, budgetID uuid.UUID) ([]*billing.PaymentLedger, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*billing.PaymentLedger
	if budgetID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Preload("Pagos", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("budget_id = ?", budgetID).
		Order("fase_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerRepo) AppendEntry(dbc dbctx.Context, entry *billing.LedgerEntry) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(entry).Error
}

func (r *ledgerRepo) ListEntries(dbc dbctx.Context, ledgerID uuid.UUID) ([]billing.LedgerEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []billing.LedgerEntry
	if ledgerID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("ledger_id = ?", ledgerID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerRepo) GetEntryByID(dbc dbctx.Context, ledgerID, entryID uuid.UUID) (*billing.LedgerEntry, error) {
	if ledgerID == uuid.Nil || entryID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.LedgerEntry
	if err := t.WithContext(dbc.Ctx).
		Where("ledger_id = ? AND id = ?", ledgerID, entryID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *ledgerRepo) GetEntryByIdempotencyKey(dbc dbctx.Context, ledgerID uuid.UUID, key string) (*billing.LedgerEntry, error) {
	if ledgerID == uuid.Nil || key == "" {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.LedgerEntry
	if err := t.WithContext(dbc.Ctx).
		Where("ledger_id = ? AND idempotency_key = ?", ledgerID, key).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *ledgerRepo) UpdateEntryFields(dbc dbctx.Context, entryID uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if entryID == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&billing.LedgerEntry{}).
		Where("id = ?", entryID).
		Updates(updates).Error
}

func (r *ledgerRepo) NonVoidedTotal(dbc dbctx.Context, ledgerID uuid.UUID) (float64, error) {
	if ledgerID == uuid.Nil {
		return 0, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var total float64
	err := t.WithContext(dbc.Ctx).
		Model(&billing.LedgerEntry{}).
		Select("COALESCE(SUM(monto), 0)").
		Where("ledger_id = ? AND anulado = false", ledgerID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ledgerRepo) NextSeq(dbc dbctx.Context, ledgerID uuid.UUID) (int64, error) {
	if ledgerID == uuid.Nil {
		return 0, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var max int64
	err := t.WithContext(dbc.Ctx).
		Model(&billing.LedgerEntry{}).
		Select("COALESCE(MAX(seq), 0)").
		Where("ledger_id = ?", ledgerID).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *ledgerRepo) DeleteByBudget(dbc dbctx.Context, budgetID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if budgetID == uuid.Nil {
		return nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("ledger_id IN (?)", t.Model(&billing.PaymentLedger{}).Select("id").Where("budget_id = ?", budgetID)).
		Delete(&billing.LedgerEntry{}).Error; err != nil {
		return err
	}
	return t.WithContext(dbc.Ctx).
		Where("budget_id = ?", budgetID).
		Delete(&billing.PaymentLedger{}).Error
}

func (r *ledgerRepo) DeleteAll(dbc dbctx.Context) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Exec("DELETE FROM ledger_entry").Error; err != nil {
		return err
	}
	return t.WithContext(dbc.Ctx).Exec("DELETE FROM payment_ledger").Error
}
