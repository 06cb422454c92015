package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sgco/clinic-backend/internal/data/repos"
	"github.com/sgco/clinic-backend/internal/data/repos/testutil"
	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/domain/clinic"
	"github.com/sgco/clinic-backend/internal/platform/apierr"
)

type billingFixture struct {
	db       *gorm.DB
	budgets  BudgetService
	payments PaymentService
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	budgetRepo := repos.NewBudgetRepo(db, log)
	ledgerRepo := repos.NewLedgerRepo(db, log)
	txLogRepo := repos.NewTransactionLogRepo(db, log)
	eventRepo := repos.NewPaymentEventRepo(db, log)
	patientRepo := repos.NewPatientRepo(db, log)
	planRepo := repos.NewTreatmentPlanRepo(db, log)

	cache := NewReportCache(nil, log)
	return &billingFixture{
		db:       db,
		budgets:  NewBudgetService(db, log, budgetRepo, ledgerRepo, patientRepo, planRepo),
		payments: NewPaymentService(db, log, budgetRepo, ledgerRepo, txLogRepo, eventRepo, cache),
	}
}

func (f *billingFixture) createPatient(t *testing.T) *clinic.Patient {
	t.Helper()
	p := &clinic.Patient{NombrePaciente: "Paciente Prueba", NumeroCedula: uuid.NewString()[:10]}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func (f *billingFixture) createBudget(t *testing.T, patientID uuid.UUID) *BudgetDetail {
	t.Helper()
	detail, err := f.budgets.Create(context.Background(), CreateBudgetInput{
		PacienteID:   patientID,
		Especialidad: "Endodoncia",
		Fases: []PhaseInput{{
			Nombre: "Fase 1",
			Procedimientos: []ProcedureInput{
				{Nombre: "Tratamiento de conducto", NumeroPiezas: 1, CostoPorUnidad: 100},
			},
		}},
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	return detail
}

func TestPaymentLifecycle(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	patient := f.createPatient(t)
	budget := f.createBudget(t, patient.ID)
	if budget.TotalGeneral != 100 {
		t.Fatalf("budget total: want=100 got=%v", budget.TotalGeneral)
	}

	// Register 60 of 100.
	ledger, err := f.payments.RegisterPayment(ctx, RegisterPaymentInput{
		BudgetID:    budget.ID,
		FaseIndex:   0,
		Descripcion: "Primer abono",
		Monto:       60,
		MetodoPago:  billing.MetodoEfectivo,
	})
	if err != nil {
		t.Fatalf("register 60: %v", err)
	}
	if len(ledger.Pagos) != 1 {
		t.Fatalf("ledger entries after first payment: want=1 got=%d", len(ledger.Pagos))
	}
	if ledger.Pagos[0].Saldo != 40 {
		t.Fatalf("entry balance: want=40 got=%v", ledger.Pagos[0].Saldo)
	}
	if ledger.Pagos[0].TransactionID == uuid.Nil {
		t.Fatalf("entry should reference its transaction-log row")
	}

	// 50 more would overshoot the 40 pending.
	_, err = f.payments.RegisterPayment(ctx, RegisterPaymentInput{
		BudgetID:    budget.ID,
		FaseIndex:   0,
		Descripcion: "Sobregiro",
		Monto:       50,
		MetodoPago:  billing.MetodoEfectivo,
	})
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != apierr.CodeBusinessRule {
		t.Fatalf("overshoot: want business_rule error, got %v", err)
	}

	// Exactly 40 completes the phase.
	ledger, err = f.payments.RegisterPayment(ctx, RegisterPaymentInput{
		BudgetID:    budget.ID,
		FaseIndex:   0,
		Descripcion: "Saldo final",
		Monto:       40,
		MetodoPago:  billing.MetodoTarjeta,
	})
	if err != nil {
		t.Fatalf("register 40: %v", err)
	}

	summary, err := f.payments.Summary(ctx, budget.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalPagado != 100 || summary.EstadoPagoGeneral != billing.StatusCompletado {
		t.Fatalf("summary after completion: paid=%v status=%q", summary.TotalPagado, summary.EstadoPagoGeneral)
	}

	// Void the first payment: status drops back to parcial and the log row
	// registered with it disappears.
	firstPago := ledger.Pagos[0]
	ledger, err = f.payments.VoidPayment(ctx, VoidPaymentInput{
		BudgetID:        budget.ID,
		FaseIndex:       0,
		PagoID:          firstPago.ID,
		MotivoAnulacion: "Error de digitación",
	})
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if !ledger.Pagos[0].Anulado || ledger.Pagos[0].FechaAnulacion == nil {
		t.Fatalf("entry not marked voided: %+v", ledger.Pagos[0])
	}
	if got := ledger.TotalPagado(); got != 40 {
		t.Fatalf("ledger paid after void: want=40 got=%v", got)
	}

	var logCount int64
	if err := f.db.Model(&billing.TransactionEntry{}).
		Where("budget_id = ?", budget.ID).Count(&logCount).Error; err != nil {
		t.Fatalf("count log rows: %v", err)
	}
	if logCount != 1 {
		t.Fatalf("transaction-log rows after void: want=1 got=%d", logCount)
	}

	// Double void is rejected.
	_, err = f.payments.VoidPayment(ctx, VoidPaymentInput{
		BudgetID:        budget.ID,
		FaseIndex:       0,
		PagoID:          firstPago.ID,
		MotivoAnulacion: "De nuevo",
	})
	if !errors.As(err, &ae) || ae.Code != apierr.CodeBusinessRule {
		t.Fatalf("double void: want business_rule error, got %v", err)
	}
}

func TestRegisterPaymentIdempotencyKey(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	patient := f.createPatient(t)
	budget := f.createBudget(t, patient.ID)

	in := RegisterPaymentInput{
		BudgetID:       budget.ID,
		FaseIndex:      0,
		Descripcion:    "Abono con retry",
		Monto:          30,
		MetodoPago:     billing.MetodoTransferencia,
		IdempotencyKey: uuid.NewString(),
	}

	first, err := f.payments.RegisterPayment(ctx, in)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	second, err := f.payments.RegisterPayment(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(first.Pagos) != 1 || len(second.Pagos) != 1 {
		t.Fatalf("entry counts: first=%d second=%d, want 1 and 1", len(first.Pagos), len(second.Pagos))
	}

	summary, err := f.payments.Summary(ctx, budget.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalPagado != 30 {
		t.Fatalf("paid after replay: want=30 got=%v", summary.TotalPagado)
	}
}

func TestRegisterPaymentInvalidPhase(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	patient := f.createPatient(t)
	budget := f.createBudget(t, patient.ID)

	_, err := f.payments.RegisterPayment(ctx, RegisterPaymentInput{
		BudgetID:    budget.ID,
		FaseIndex:   5,
		Descripcion: "Fase inexistente",
		Monto:       10,
		MetodoPago:  billing.MetodoEfectivo,
	})
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != apierr.CodeValidation {
		t.Fatalf("invalid phase: want validation error, got %v", err)
	}
}

func TestReconcileBudgetRepairsDrift(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	patient := f.createPatient(t)
	budget := f.createBudget(t, patient.ID)

	if _, err := f.payments.RegisterPayment(ctx, RegisterPaymentInput{
		BudgetID:    budget.ID,
		FaseIndex:   0,
		Descripcion: "Abono",
		Monto:       25,
		MetodoPago:  billing.MetodoEfectivo,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// No drift right after a clean write.
	result, err := f.payments.ReconcileBudget(ctx, budget.ID)
	if err != nil {
		t.Fatalf("reconcile clean: %v", err)
	}
	if result.Repaired || len(result.Drift) != 0 {
		t.Fatalf("clean budget reported drift: %+v", result)
	}

	// Corrupt the cached paid figure behind the service's back.
	var row billing.Budget
	if err := f.db.Where("id = ?", budget.ID).First(&row).Error; err != nil {
		t.Fatalf("load budget: %v", err)
	}
	row.Fases[0].TotalPagado = 999
	if err := f.db.Save(&row).Error; err != nil {
		t.Fatalf("corrupt budget: %v", err)
	}

	result, err = f.payments.ReconcileBudget(ctx, budget.ID)
	if err != nil {
		t.Fatalf("reconcile drifted: %v", err)
	}
	if !result.Repaired || len(result.Drift) != 1 {
		t.Fatalf("drift not repaired: %+v", result)
	}
	if result.Drift[0].Cached != 999 || result.Drift[0].Derived != 25 {
		t.Fatalf("drift figures: %+v", result.Drift[0])
	}

	repaired, err := f.budgets.Get(ctx, budget.ID)
	if err != nil {
		t.Fatalf("reload budget: %v", err)
	}
	if repaired.TotalPagado != 25 {
		t.Fatalf("paid after repair: want=25 got=%v", repaired.TotalPagado)
	}
}

func TestDeleteAllForBudgetResetsCaches(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	patient := f.createPatient(t)
	budget := f.createBudget(t, patient.ID)

	if _, err := f.payments.RegisterPayment(ctx, RegisterPaymentInput{
		BudgetID:    budget.ID,
		FaseIndex:   0,
		Descripcion: "Abono",
		Monto:       80,
		MetodoPago:  billing.MetodoCheque,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := f.payments.DeleteAllForBudget(ctx, budget.ID); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	reloaded, err := f.budgets.Get(ctx, budget.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.TotalPagado != 0 || reloaded.EstadoPagoGeneral != billing.StatusPendiente {
		t.Fatalf("caches after wipe: paid=%v status=%q", reloaded.TotalPagado, reloaded.EstadoPagoGeneral)
	}

	ledgers, err := f.payments.ListLedgers(ctx, budget.ID)
	if err != nil {
		t.Fatalf("list ledgers: %v", err)
	}
	if len(ledgers) != 0 {
		t.Fatalf("ledgers after wipe: want=0 got=%d", len(ledgers))
	}
}
