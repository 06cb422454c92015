package billing

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

type PaymentEventRepo interface {
	Create(dbc dbctx.Context, row *billing.PaymentEvent) error
	ListByBudget(dbc dbctx.Context, budgetID uuid.UUID) ([]*billing.PaymentEvent, error)
	DeleteByBudget(dbc dbctx.Context, budgetID uuid.UUID) error
	DeleteAll(dbc dbctx.Context) error
}

type paymentEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaymentEventRepo(db *gorm.DB, baseLog *logger.Logger) PaymentEventRepo {
	return &paymentEventRepo{db: db, log: baseLog.With("repo", "PaymentEventRepo")}
}

func (r *paymentEventRepo) Create(dbc dbctx.Context, row *billing.PaymentEvent) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *paymentEventRepo) ListByBudget(dbc dbctx.Context, budgetID uuid.UUID) ([]*billing.PaymentEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*billing.PaymentEvent
	if budgetID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("budget_id = ?", budgetID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *paymentEventRepo) DeleteByBudget(dbc dbctx.Context, budgetID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if budgetID == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).Where("budget_id = ?", budgetID).Delete(&billing.PaymentEvent{}).Error
}

func (r *paymentEventRepo) DeleteAll(dbc dbctx.Context) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Exec("DELETE FROM payment_event").Error
}
