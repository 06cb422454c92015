package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payment status for a phase and for the budget aggregate.
// pendiente iff paid == 0, completado iff paid >= total, parcial otherwise.
const (
	StatusPendiente  = "pendiente"
	StatusParcial    = "parcial"
	StatusCompletado = "completado"
)

func DeriveStatus(total, paid float64) string {
	if paid == 0 {
		return StatusPendiente
	}
	if paid >= total {
		return StatusCompletado
	}
	return StatusParcial
}

// Procedure is one billable item inside a phase.
type Procedure struct {
	Nombre         string  `json:"nombre"`
	NumeroPiezas   int     `json:"numeroPiezas"`
	CostoPorUnidad float64 `json:"costoPorUnidad"`
	CostoTotal     float64 `json:"costoTotal"`
}

// Phase is a billable stage of a treatment, identified by its index within
// the budget. TotalPagado/SaldoPendiente/EstadoPago are caches written only
// by the payment reconciliation path; the ledger entries are the source of
// truth for them.
type Phase struct {
	Nombre         string      `json:"nombre"`
	Descripcion    string      `json:"descripcion,omitempty"`
	Procedimientos []Procedure `json:"procedimientos"`
	Total          float64     `json:"total"`
	TotalPagado    float64     `json:"totalPagado"`
	SaldoPendiente float64     `json:"saldoPendiente"`
	EstadoPago     string      `json:"estadoPago"`
}

// PhaseList is stored as a single JSONB column: phases are positional and
// always read or written as a whole with their budget.
type PhaseList []Phase

func (p PhaseList) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PhaseList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	default:
		return errors.New("unsupported type for PhaseList")
	}
}

// Budget is the aggregate root of the treatment cost structure.
type Budget struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	PacienteID uuid.UUID `gorm:"type:uuid;not null;index" json:"paciente"`

	// At most one budget per treatment plan, enforced by a partial unique
	// index on top of the lookup-before-create check in the service.
	TreatmentPlanID *uuid.UUID `gorm:"type:uuid;index" json:"treatmentPlan,omitempty"`

	Fecha        time.Time `gorm:"not null;default:now()" json:"fecha"`
	Especialidad string    `gorm:"not null" json:"especialidad"`

	Fases PhaseList `gorm:"type:jsonb;not null" json:"fases"`

	TotalGeneral        float64 `gorm:"type:numeric(12,2);not null;default:0" json:"totalGeneral"`
	TotalPagado         float64 `gorm:"type:numeric(12,2);not null;default:0" json:"totalPagado"`
	SaldoPendienteTotal float64 `gorm:"type:numeric(12,2);not null;default:0" json:"saldoPendienteTotal"`
	EstadoPagoGeneral   string  `gorm:"not null;default:'pendiente'" json:"estadoPagoGeneral"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Budget) TableName() string { return "budget" }

// ComputeTotals recomputes every derived cost figure bottom-up: procedure
// line totals, phase totals and the grand total. Paid caches are preserved
// and the pending balances re-derived against the new totals.
func (b *Budget) ComputeTotals() {
	grand := 0.0
	for i := range b.Fases {
		fase := &b.Fases[i]
		total := 0.0
		for j := range fase.Procedimientos {
			proc := &fase.Procedimientos[j]
			proc.CostoTotal = float64(proc.NumeroPiezas) * proc.CostoPorUnidad
			total += proc.CostoTotal
		}
		fase.Total = total
		fase.SaldoPendiente = fase.Total - fase.TotalPagado
		fase.EstadoPago = DeriveStatus(fase.Total, fase.TotalPagado)
		grand += total
	}
	b.TotalGeneral = grand
	paid := 0.0
	for i := range b.Fases {
		paid += b.Fases[i].TotalPagado
	}
	b.TotalPagado = paid
	b.SaldoPendienteTotal = b.TotalGeneral - paid
	b.EstadoPagoGeneral = DeriveStatus(b.TotalGeneral, paid)
}

// ApplyPaymentDelta adjusts the cached paid total of one phase by delta
// (positive for a registered payment, negative for a voided one) and
// re-derives every dependent figure. It is the only writer of the paid
// caches and must run inside the same transaction as the ledger write.
func (b *Budget) ApplyPaymentDelta(faseIndex int, delta float64) error {
	if faseIndex < 0 || faseIndex >= len(b.Fases) {
		return fmt.Errorf("fase %d fuera de rango (presupuesto con %d fases)", faseIndex, len(b.Fases))
	}
	fase := &b.Fases[faseIndex]
	fase.TotalPagado += delta
	fase.SaldoPendiente = fase.Total - fase.TotalPagado
	fase.EstadoPago = DeriveStatus(fase.Total, fase.TotalPagado)

	paid := 0.0
	for i := range b.Fases {
		paid += b.Fases[i].TotalPagado
	}
	b.TotalPagado = paid
	b.SaldoPendienteTotal = b.TotalGeneral - paid
	b.EstadoPagoGeneral = DeriveStatus(b.TotalGeneral, paid)
	return nil
}

// ResetPayments clears every paid cache, used when all payments of a budget
// are wiped.
func (b *Budget) ResetPayments() {
	for i := range b.Fases {
		b.Fases[i].TotalPagado = 0
		b.Fases[i].SaldoPendiente = b.Fases[i].Total
		b.Fases[i].EstadoPago = StatusPendiente
	}
	b.TotalPagado = 0
	b.SaldoPendienteTotal = b.TotalGeneral
	b.EstadoPagoGeneral = StatusPendiente
}
