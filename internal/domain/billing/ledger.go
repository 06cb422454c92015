package billing

import (
	"time"

	"github.com/google/uuid"
)

// Accepted payment methods.
const (
	MetodoEfectivo      = "efectivo"
	MetodoTransferencia = "transferencia"
	MetodoTarjeta       = "tarjeta"
	MetodoCheque        = "cheque"
)

func ValidMetodoPago(m string) bool {
	switch m {
	case MetodoEfectivo, MetodoTransferencia, MetodoTarjeta, MetodoCheque:
		return true
	}
	return false
}

// Receipt types for the optional comprobante reference on an entry.
const (
	ComprobanteFactura = "factura"
	ComprobanteRecibo  = "recibo"
	ComprobanteOtro    = "otro"
)

// PaymentLedger is the per-phase payment record: one row per
// (budget, phase index) pair, created lazily on the first payment.
// NombreFase/TotalFase snapshot the budget phase and are re-synced when the
// phase's procedures are edited.
type PaymentLedger struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	BudgetID  uuid.UUID `gorm:"type:uuid;not null;index:idx_payment_ledger_budget_fase,unique,priority:1" json:"budget"`
	FaseIndex int       `gorm:"not null;index:idx_payment_ledger_budget_fase,unique,priority:2" json:"faseIndex"`

	NombreFase string  `gorm:"not null" json:"nombreFase"`
	TotalFase  float64 `gorm:"type:numeric(12,2);not null" json:"totalFase"`

	Pagos []LedgerEntry `gorm:"foreignKey:LedgerID" json:"pagos"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PaymentLedger) TableName() string { return "payment_ledger" }

// TotalPagado sums the non-voided entries currently loaded on the ledger.
func (l *PaymentLedger) TotalPagado() float64 {
	sum := 0.0
	for i := range l.Pagos {
		if !l.Pagos[i].Anulado {
			sum += l.Pagos[i].Monto
		}
	}
	return sum
}

func (l *PaymentLedger) SaldoPendiente() float64 {
	return l.TotalFase - l.TotalPagado()
}

// LedgerEntry is one payment (pago) inside a phase ledger. Immutable once
// created except for the one-way void transition.
type LedgerEntry struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	LedgerID uuid.UUID `gorm:"type:uuid;not null;index:idx_ledger_entry_ledger_seq,unique,priority:1" json:"-"`
	Seq      int64     `gorm:"type:bigint;not null;index:idx_ledger_entry_ledger_seq,unique,priority:2" json:"-"`

	Descripcion string    `gorm:"not null" json:"descripcion"`
	Fecha       time.Time `gorm:"not null;default:now()" json:"fecha"`
	Monto       float64   `gorm:"type:numeric(12,2);not null" json:"monto"`

	// Phase balance after this payment, captured at registration time.
	Saldo float64 `gorm:"type:numeric(12,2);not null" json:"saldo"`

	MetodoPago string `gorm:"not null" json:"metodoPago"`

	ComprobanteNumero string `json:"comprobanteNumero,omitempty"`
	ComprobanteTipo   string `json:"comprobanteTipo,omitempty"`

	Anulado        bool       `gorm:"not null;default:false" json:"anulado"`
	FechaAnulacion *time.Time `json:"fechaAnulacion,omitempty"`
	MotivoAnulacion string    `json:"motivoAnulacion,omitempty"`

	// Direct reference to the transaction-log row written with this entry,
	// so voiding deletes exactly that row.
	TransactionID uuid.UUID `gorm:"type:uuid;not null" json:"-"`

	// Client retry dedupe; unique per ledger when non-empty.
	IdempotencyKey string `gorm:"not null;default:''" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entry" }
