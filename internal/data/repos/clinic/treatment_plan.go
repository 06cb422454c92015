package clinic

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sgco/clinic-backend/internal/domain/clinic"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

type TreatmentPlanRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*clinic.TreatmentPlan, error)
	Exists(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type treatmentPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTreatmentPlanRepo(db *gorm.DB, baseLog *logger.Logger) TreatmentPlanRepo {
	return &treatmentPlanRepo{db: db, log: baseLog.With("repo", "TreatmentPlanRepo")}
}

func (r *treatmentPlanRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*clinic.TreatmentPlan, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row clinic.TreatmentPlan
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *treatmentPlanRepo) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&clinic.TreatmentPlan{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
