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

type BudgetRepo interface {
	Create(dbc dbctx.Context, row *billing.Budget) error
	Save(dbc dbctx.Context, row *billing.Budget) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error

	GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.Budget, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*billing.Budget, error)
	GetByTreatmentPlanID(dbc dbctx.Context, planID uuid.UUID) (*billing.Budget, error)
	ListByPatientID(dbc dbctx.Context, patientID uuid.UUID) ([]*billing.Budget, error)
	List(dbc dbctx.Context) ([]*billing.Budget, error)
}

type budgetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBudgetRepo(db *gorm.DB, baseLog *logger.Logger) BudgetRepo {
	return &budgetRepo{db: db, log: baseLog.With("repo", "BudgetRepo")}
}

func (r *budgetRepo) Create(dbc dbctx.Context, row *billing.Budget) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *budgetRepo) Save(dbc dbctx.Context, row *billing.Budget) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	row.UpdatedAt = time.Now().UTC()
	return t.WithContext(dbc.Ctx).Save(row).Error
}

func (r *budgetRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&billing.Budget{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *budgetRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&billing.Budget{}).Error
}

func (r *budgetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.Budget, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.Budget
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *budgetRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*billing.Budget, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.Budget
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
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

func (r *budgetRepo) GetByTreatmentPlanID(dbc dbctx.Context, planID uuid.UUID) (*billing.Budget, error) {
	if planID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row billing.Budget
	if err := t.WithContext(dbc.Ctx).Where("treatment_plan_id = ?", planID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *budgetRepo) ListByPatientID(dbc dbctx.Context, patientID uuid.UUID) ([]*billing.Budget, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*billing.Budget
	if patientID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("paciente_id = ?", patientID).
		Order("fecha DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *budgetRepo) List(dbc dbctx.Context) ([]*billing.Budget, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*billing.Budget
	if err := t.WithContext(dbc.Ctx).Order("fecha DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
