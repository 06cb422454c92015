package clinic

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Activity is one planned appointment/activity inside a treatment plan.
type Activity struct {
	Cita              string    `json:"cita"`
	ActividadPlanTrat string    `json:"actividadPlanTrat"`
	FechaPlanTrat     time.Time `json:"fechaPlanTrat"`
	MontoAbono        float64   `json:"montoAbono"`
	Estado            string    `json:"estado"`
}

type ActivityList []Activity

func (a ActivityList) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *ActivityList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = nil
		return nil
	default:
		return errors.New("unsupported type for ActivityList")
	}
}

// TreatmentPlan is the collaborator aggregate budgets can be derived from.
// Only the lookups the billing core needs are exposed through its repo.
type TreatmentPlan struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	PacienteID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"paciente"`
	Especialidad string       `gorm:"not null" json:"especialidad"`
	Actividades  ActivityList `gorm:"type:jsonb;not null" json:"actividades"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TreatmentPlan) TableName() string { return "treatment_plan" }
