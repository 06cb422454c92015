package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sgco/clinic-backend/internal/data/repos"
	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/platform/apierr"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

type RegisterPaymentInput struct {
	BudgetID  uuid.UUID
	FaseIndex int

	Descripcion       string  `json:"descripcion"`
	Monto             float64 `json:"monto"`
	MetodoPago        string  `json:"metodoPago"`
	ComprobanteNumero string  `json:"comprobanteNumero"`
	ComprobanteTipo   string  `json:"comprobanteTipo"`

	// From the Idempotency-Key header; empty disables dedupe.
	IdempotencyKey string `json:"-"`
}

type VoidPaymentInput struct {
	BudgetID  uuid.UUID
	FaseIndex int
	PagoID    uuid.UUID

	MotivoAnulacion string `json:"motivoAnulacion"`
}

// PhaseSummary is the per-phase slice of a budget payment summary.
type PhaseSummary struct {
	FaseIndex      int     `json:"faseIndex"`
	NombreFase     string  `json:"nombreFase"`
	TotalFase      float64 `json:"totalFase"`
	TotalPagado    float64 `json:"totalPagado"`
	SaldoPendiente float64 `json:"saldoPendiente"`
	EstadoPago     string  `json:"estadoPago"`
	CantidadPagos  int     `json:"cantidadPagos"`

	// All entries, voided ones included and flagged.
	Pagos []billing.LedgerEntry `json:"pagos"`
}

type BudgetPaymentSummary struct {
	BudgetID            uuid.UUID      `json:"presupuesto"`
	TotalGeneral        float64        `json:"totalGeneral"`
	TotalPagado         float64        `json:"totalPagado"`
	SaldoPendienteTotal float64        `json:"saldoPendienteTotal"`
	PorcentajePagado    float64        `json:"porcentajePagado"`
	EstadoPagoGeneral   string         `json:"estadoPagoGeneral"`
	Fases               []PhaseSummary `json:"fases"`
}

// PhaseDrift reports one phase whose cached paid total disagreed with the sum
// of its non-voided ledger entries.
type PhaseDrift struct {
	FaseIndex int     `json:"faseIndex"`
	Cached    float64 `json:"cached"`
	Derived   float64 `json:"derived"`
}

type ReconcileResult struct {
	BudgetID uuid.UUID    `json:"presupuesto"`
	Drift    []PhaseDrift `json:"drift"`
	Repaired bool         `json:"repaired"`
}

type PaymentService interface {
	RegisterPayment(ctx context.Context, in RegisterPaymentInput) (*billing.PaymentLedger, error)
	VoidPayment(ctx context.Context, in VoidPaymentInput) (*billing.PaymentLedger, error)
	ListLedgers(ctx context.Context, budgetID uuid.UUID) ([]*billing.PaymentLedger, error)
	Summary(ctx context.Context, budgetID uuid.UUID) (*BudgetPaymentSummary, error)
	ReconcileBudget(ctx context.Context, budgetID uuid.UUID) (*ReconcileResult, error)
	DeleteAllForBudget(ctx context.Context, budgetID uuid.UUID) error
	DeleteAllSystem(ctx context.Context) error
}

type paymentService struct {
	db      *gorm.DB
	log     *logger.Logger
	budgets repos.BudgetRepo
	ledgers repos.LedgerRepo
	txlog   repos.TransactionLogRepo
	events  repos.PaymentEventRepo
	cache   *ReportCache
}

func NewPaymentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	budgets repos.BudgetRepo,
	ledgers repos.LedgerRepo,
	txlog repos.TransactionLogRepo,
	events repos.PaymentEventRepo,
	cache *ReportCache,
) PaymentService {
	return &paymentService{
		db:      db,
		log:     baseLog.With("service", "PaymentService"),
		budgets: budgets,
		ledgers: ledgers,
		txlog:   txlog,
		events:  events,
		cache:   cache,
	}
}

func validateRegisterInput(in RegisterPaymentInput) error {
	if in.Descripcion == "" {
		return apierr.Validation("descripcion: la descripción del pago es obligatoria")
	}
	if in.Monto <= 0 {
		return apierr.Validation("monto: el monto debe ser mayor que cero")
	}
	if !billing.ValidMetodoPago(in.MetodoPago) {
		return apierr.Validation("metodoPago: método de pago inválido: %q", in.MetodoPago)
	}
	if in.ComprobanteTipo != "" {
		switch in.ComprobanteTipo {
		case billing.ComprobanteFactura, billing.ComprobanteRecibo, billing.ComprobanteOtro:
		default:
			return apierr.Validation("comprobanteTipo: tipo de comprobante inválido: %q", in.ComprobanteTipo)
		}
	}
	return nil
}

// RegisterPayment appends a payment to the phase ledger and, in the same
// transaction, writes the transaction-log row and the budget's paid caches.
// The budget and ledger rows are locked up front so concurrent registrations
// against the same phase serialize instead of double-spending the balance.
func (s *paymentService) RegisterPayment(ctx context.Context, in RegisterPaymentInput) (*billing.PaymentLedger, error) {
	if err := validateRegisterInput(in); err != nil {
		return nil, err
	}

	var (
		ledgerID uuid.UUID
		replayed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		budget, err := s.budgets.LockByID(dbc, in.BudgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return apierr.NotFound("Presupuesto no encontrado")
		}
		if in.FaseIndex < 0 || in.FaseIndex >= len(budget.Fases) {
			return apierr.Validation("Índice de fase inválido")
		}
		fase := budget.Fases[in.FaseIndex]

		ledger, err := s.ledgers.LockByBudgetAndPhase(dbc, in.BudgetID, in.FaseIndex)
		if err != nil {
			return err
		}
		if ledger == nil {
			ledger = &billing.PaymentLedger{
				BudgetID:   in.BudgetID,
				FaseIndex:  in.FaseIndex,
				NombreFase: fase.Nombre,
				TotalFase:  fase.Total,
			}
			if err := s.ledgers.Create(dbc, ledger); err != nil {
				return err
			}
		}
		ledgerID = ledger.ID

		if in.IdempotencyKey != "" {
			prior, err := s.ledgers.GetEntryByIdempotencyKey(dbc, ledger.ID, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				replayed = true
				return nil
			}
		}

		paid, err := s.ledgers.NonVoidedTotal(dbc, ledger.ID)
		if err != nil {
			return err
		}
		if paid+in.Monto > ledger.TotalFase {
			return apierr.BusinessRule(
				"El monto del pago (%.2f) excede el saldo pendiente de la fase (%.2f)",
				in.Monto, ledger.TotalFase-paid,
			)
		}

		now := time.Now().UTC()
		logRow := &billing.TransactionEntry{
			BudgetID:     budget.ID,
			PacienteID:   budget.PacienteID,
			Fecha:        now,
			Monto:        in.Monto,
			MetodoPago:   in.MetodoPago,
			ConceptoPago: fmt.Sprintf("Pago de fase %d: %s", in.FaseIndex+1, in.Descripcion),
		}
		if err := s.txlog.Create(dbc, logRow); err != nil {
			return err
		}

		seq, err := s.ledgers.NextSeq(dbc, ledger.ID)
		if err != nil {
			return err
		}
		entry := &billing.LedgerEntry{
			LedgerID:          ledger.ID,
			Seq:               seq,
			Descripcion:       in.Descripcion,
			Fecha:             now,
			Monto:             in.Monto,
			Saldo:             ledger.TotalFase - (paid + in.Monto),
			MetodoPago:        in.MetodoPago,
			ComprobanteNumero: in.ComprobanteNumero,
			ComprobanteTipo:   in.ComprobanteTipo,
			TransactionID:     logRow.ID,
			IdempotencyKey:    in.IdempotencyKey,
		}
		if err := s.ledgers.AppendEntry(dbc, entry); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"monto":      in.Monto,
			"metodoPago": in.MetodoPago,
			"seq":        seq,
		})
		if err := s.events.Create(dbc, &billing.PaymentEvent{
			BudgetID:  budget.ID,
			FaseIndex: in.FaseIndex,
			EntryID:   entry.ID,
			Kind:      billing.EventKindRegister,
			Payload:   payload,
		}); err != nil {
			return err
		}

		if err := budget.ApplyPaymentDelta(in.FaseIndex, in.Monto); err != nil {
			return err
		}
		return s.budgets.Save(dbc, budget)
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		s.log.Info("Payment replayed from idempotency key", "budget_id", in.BudgetID, "fase_index", in.FaseIndex)
	} else {
		s.log.Info("Payment registered",
			"budget_id", in.BudgetID, "fase_index", in.FaseIndex, "monto", in.Monto, "metodo", in.MetodoPago)
		s.cache.Invalidate(ctx)
	}
	return s.loadLedger(ctx, ledgerID)
}

// VoidPayment marks an entry voided and removes exactly the transaction-log
// row registered with it. The payment stays in the ledger for audit.
func (s *paymentService) VoidPayment(ctx context.Context, in VoidPaymentInput) (*billing.PaymentLedger, error) {
	if in.MotivoAnulacion == "" {
		return nil, apierr.Validation("motivoAnulacion: el motivo de anulación es obligatorio")
	}

	var ledgerID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		budget, err := s.budgets.LockByID(dbc, in.BudgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return apierr.NotFound("Presupuesto no encontrado")
		}

		ledger, err := s.ledgers.LockByBudgetAndPhase(dbc, in.BudgetID, in.FaseIndex)
		if err != nil {
			return err
		}
		if ledger == nil {
			return apierr.NotFound("Fase de pago no encontrada")
		}
		ledgerID = ledger.ID

		entry, err := s.ledgers.GetEntryByID(dbc, ledger.ID, in.PagoID)
		if err != nil {
			return err
		}
		if entry == nil {
			return apierr.NotFound("Pago no encontrado")
		}
		if entry.Anulado {
			return apierr.BusinessRule("El pago ya está anulado")
		}

		if entry.TransactionID != uuid.Nil {
			if err := s.txlog.DeleteByID(dbc, entry.TransactionID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := s.ledgers.UpdateEntryFields(dbc, entry.ID, map[string]interface{}{
			"anulado":          true,
			"fecha_anulacion":  now,
			"motivo_anulacion": in.MotivoAnulacion,
		}); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"monto":  entry.Monto,
			"motivo": in.MotivoAnulacion,
		})
		if err := s.events.Create(dbc, &billing.PaymentEvent{
			BudgetID:  budget.ID,
			FaseIndex: in.FaseIndex,
			EntryID:   entry.ID,
			Kind:      billing.EventKindVoid,
			Payload:   payload,
		}); err != nil {
			return err
		}

		if err := budget.ApplyPaymentDelta(in.FaseIndex, -entry.Monto); err != nil {
			return err
		}
		return s.budgets.Save(dbc, budget)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Payment voided", "budget_id", in.BudgetID, "fase_index", in.FaseIndex, "pago_id", in.PagoID)
	s.cache.Invalidate(ctx)
	return s.loadLedger(ctx, ledgerID)
}

func (s *paymentService) loadLedger(ctx context.Context, ledgerID uuid.UUID) (*billing.PaymentLedger, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ledger, err := s.ledgers.GetByID(dbc, ledgerID)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, apierr.NotFound("Fase de pago no encontrada")
	}
	entries, err := s.ledgers.ListEntries(dbc, ledger.ID)
	if err != nil {
		return nil, err
	}
	ledger.Pagos = entries
	return ledger, nil
}

func (s *paymentService) ListLedgers(ctx context.Context, budgetID uuid.UUID) ([]*billing.PaymentLedger, error) {
	dbc := dbctx.Context{Ctx: ctx}
	budget, err := s.budgets.GetByID(dbc, budgetID)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		return nil, apierr.NotFound("Presupuesto no encontrado")
	}
	return s.ledgers.ListByBudget(dbc, budgetID)
}

func (s *paymentService) Summary(ctx context.Context, budgetID uuid.UUID) (*BudgetPaymentSummary, error) {
	dbc := dbctx.Context{Ctx: ctx}
	budget, err := s.budgets.GetByID(dbc, budgetID)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		return nil, apierr.NotFound("Presupuesto no encontrado")
	}
	ledgers, err := s.ledgers.ListByBudget(dbc, budgetID)
	if err != nil {
		return nil, err
	}
	return BuildSummary(budget, ledgers), nil
}

// BuildSummary derives the payment summary from the budget's phase structure
// and the ledger entries, never from the budget's cached totals.
func BuildSummary(budget *billing.Budget, ledgers []*billing.PaymentLedger) *BudgetPaymentSummary {
	byPhase := make(map[int]*billing.PaymentLedger, len(ledgers))
	for _, l := range ledgers {
		byPhase[l.FaseIndex] = l
	}

	out := &BudgetPaymentSummary{
		BudgetID:     budget.ID,
		TotalGeneral: budget.TotalGeneral,
		Fases:        make([]PhaseSummary, 0, len(budget.Fases)),
	}
	for i, fase := range budget.Fases {
		ps := PhaseSummary{
			FaseIndex:  i,
			NombreFase: fase.Nombre,
			TotalFase:  fase.Total,
			Pagos:      []billing.LedgerEntry{},
		}
		if l, ok := byPhase[i]; ok {
			ps.TotalPagado = l.TotalPagado()
			if l.Pagos != nil {
				ps.Pagos = l.Pagos
			}
			for j := range l.Pagos {
				if !l.Pagos[j].Anulado {
					ps.CantidadPagos++
				}
			}
		}
		ps.SaldoPendiente = ps.TotalFase - ps.TotalPagado
		ps.EstadoPago = billing.DeriveStatus(ps.TotalFase, ps.TotalPagado)
		out.TotalPagado += ps.TotalPagado
		out.Fases = append(out.Fases, ps)
	}
	out.SaldoPendienteTotal = out.TotalGeneral - out.TotalPagado
	out.EstadoPagoGeneral = billing.DeriveStatus(out.TotalGeneral, out.TotalPagado)
	if out.TotalGeneral > 0 {
		out.PorcentajePagado = out.TotalPagado / out.TotalGeneral * 100
	}
	return out
}

// ReconcileBudget recomputes every paid cache from the ledgers and repairs the
// budget row when they drifted apart.
func (s *paymentService) ReconcileBudget(ctx context.Context, budgetID uuid.UUID) (*ReconcileResult, error) {
	result := &ReconcileResult{BudgetID: budgetID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		budget, err := s.budgets.LockByID(dbc, budgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return apierr.NotFound("Presupuesto no encontrado")
		}

		ledgers, err := s.ledgers.ListByBudget(dbc, budgetID)
		if err != nil {
			return err
		}
		byPhase := make(map[int]*billing.PaymentLedger, len(ledgers))
		for _, l := range ledgers {
			byPhase[l.FaseIndex] = l
		}

		for i := range budget.Fases {
			derived := 0.0
			if l, ok := byPhase[i]; ok {
				derived = l.TotalPagado()
			}
			if cached := budget.Fases[i].TotalPagado; cached != derived {
				result.Drift = append(result.Drift, PhaseDrift{FaseIndex: i, Cached: cached, Derived: derived})
				budget.Fases[i].TotalPagado = derived
			}
		}
		if len(result.Drift) == 0 {
			return nil
		}

		budget.ComputeTotals()
		if err := s.budgets.Save(dbc, budget); err != nil {
			return err
		}
		result.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Repaired {
		s.log.Warn("Budget paid caches drifted and were repaired",
			"budget_id", budgetID, "phases", len(result.Drift))
	}
	return result, nil
}

// DeleteAllForBudget wipes every payment record of one budget and resets its
// paid caches.
func (s *paymentService) DeleteAllForBudget(ctx context.Context, budgetID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		budget, err := s.budgets.LockByID(dbc, budgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return apierr.NotFound("Presupuesto no encontrado")
		}
		if err := s.txlog.DeleteByBudget(dbc, budgetID); err != nil {
			return err
		}
		if err := s.ledgers.DeleteByBudget(dbc, budgetID); err != nil {
			return err
		}
		if err := s.events.DeleteByBudget(dbc, budgetID); err != nil {
			return err
		}
		budget.ResetPayments()
		return s.budgets.Save(dbc, budget)
	})
	if err != nil {
		return err
	}
	s.log.Warn("All payments deleted for budget", "budget_id", budgetID)
	s.cache.Invalidate(ctx)
	return nil
}

// DeleteAllSystem wipes every payment record in the system and resets the paid
// caches of every budget. Admin-only maintenance operation.
func (s *paymentService) DeleteAllSystem(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		if err := s.ledgers.DeleteAll(dbc); err != nil {
			return err
		}
		if err := s.txlog.DeleteAll(dbc); err != nil {
			return err
		}
		if err := s.events.DeleteAll(dbc); err != nil {
			return err
		}

		budgets, err := s.budgets.List(dbc)
		if err != nil {
			return err
		}
		for _, b := range budgets {
			b.ResetPayments()
			if err := s.budgets.Save(dbc, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Warn("All payment records deleted system-wide")
	s.cache.Invalidate(ctx)
	return nil
}
