package billing

import (
	"time"

	"github.com/google/uuid"
)

// TransactionEntry is one money-in event in the append-only financial log,
// independent of the phase structure. Period reports are computed over this
// table alone.
type TransactionEntry struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	BudgetID   uuid.UUID `gorm:"type:uuid;not null;index" json:"presupuesto"`
	PacienteID uuid.UUID `gorm:"type:uuid;not null;index" json:"paciente"`

	Fecha      time.Time `gorm:"not null;default:now();index" json:"fecha"`
	Monto      float64   `gorm:"type:numeric(12,2);not null" json:"monto"`
	MetodoPago string    `gorm:"not null" json:"metodoPago"`

	ConceptoPago string `gorm:"not null" json:"conceptoPago"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TransactionEntry) TableName() string { return "transaction_log" }
