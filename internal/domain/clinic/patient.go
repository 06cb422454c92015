package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the minimal projection of the patient chart this core needs:
// existence checks and the name/cédula pair embedded in budget responses.
type Patient struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	NombrePaciente string `gorm:"not null" json:"nombrePaciente"`
	NumeroCedula   string `gorm:"not null;index" json:"numeroCedula"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Patient) TableName() string { return "patient" }
