package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

type TransactionLogRepo interface {
	Create(dbc dbctx.Context, row *billing.TransactionEntry) error

	GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.TransactionEntry, error)
	List(dbc dbctx.Context) ([]*billing.TransactionEntry, error)
	ListByDateRange(dbc dbctx.Context, from, to time.Time) ([]*billing.TransactionEntry, error)

	DeleteByID(dbc dbctx.Context, id uuid.UUID) error
	DeleteByBudget(dbc dbctx.Context, budgetID uuid.UUID) error
	DeleteAll(dbc dbctx.Context) error
}

type transactionLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransactionLogRepo(db *gorm.DB, baseLog *logger.Logger) TransactionLogRepo {
	return &transactionLogRepo{db: db, log: baseLog.With("repo", "TransactionLogRepo")}
}

func (r *transactionLogRepo) Create(dbc dbctx.Context, row *billing.TransactionEntry) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *transactionLogRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.TransactionEntry, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.TransactionEntry
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *transactionLogRepo) List(dbc dbctx.Context) ([]*billing.TransactionEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*billing.TransactionEntry
	if err := t.WithContext(dbc.Ctx).Order("fecha DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByDateRange returns entries with from <= fecha < to, oldest first.
func (r *transactionLogRepo) ListByDateRange(dbc dbctx.Context, from, to time.Time) ([]*billing.TransactionEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*billing.TransactionEntry
	if err := t.WithContext(dbc.Ctx).
		Where("fecha >= ? AND fecha < ?", from, to).
		Order("fecha ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *transactionLogRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&billing.TransactionEntry{}).Error
}

func (r *transactionLogRepo) DeleteByBudget(dbc dbctx.Context, budgetID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if budgetID == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).Where("budget_id = ?", budgetID).Delete(&billing.TransactionEntry{}).Error
}

func (r *transactionLogRepo) DeleteAll(dbc dbctx.Context) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Exec("DELETE FROM transaction_log").Error
}
