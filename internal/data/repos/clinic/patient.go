package clinic

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sgco/clinic-backend/internal/domain/clinic"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

// PatientRepo exposes the only lookups the billing core needs from the
// patient chart subsystem.
type PatientRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*clinic.Patient, error)
	Exists(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type patientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatientRepo(db *gorm.DB, baseLog *logger.Logger) PatientRepo {
	return &patientRepo{db: db, log: baseLog.With("repo", "PatientRepo")}
}

func (r *patientRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*clinic.Patient, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row clinic.Patient
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *patientRepo) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&clinic.Patient{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
