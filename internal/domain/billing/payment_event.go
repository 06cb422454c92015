package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventKindRegister = "register"
	EventKindVoid     = "void"
)

// PaymentEvent is the durable record of one payment or void, appended in the
// same transaction that commits the ledger, log and budget writes. It gives
// the reconciliation routine a trail to audit when cached totals drift.
type PaymentEvent struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	BudgetID  uuid.UUID `gorm:"type:uuid;not null;index" json:"budget"`
	FaseIndex int       `gorm:"not null" json:"faseIndex"`
	EntryID   uuid.UUID `gorm:"type:uuid;not null;index" json:"entryId"`

	// register|void
	Kind string `gorm:"not null;index" json:"kind"`

	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (PaymentEvent) TableName() string { return "payment_event" }
