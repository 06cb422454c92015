package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sgco/clinic-backend/internal/domain/billing"
)

func summaryFixture() (*billing.Budget, []*billing.PaymentLedger) {
	b := &billing.Budget{
		ID: uuid.New(),
		Fases: billing.PhaseList{
			{Nombre: "Fase 1", Procedimientos: []billing.Procedure{{Nombre: "Limpieza", NumeroPiezas: 1, CostoPorUnidad: 100}}},
			{Nombre: "Fase 2", Procedimientos: []billing.Procedure{{Nombre: "Resina", NumeroPiezas: 2, CostoPorUnidad: 50}}},
		},
	}
	b.ComputeTotals()

	ledgers := []*billing.PaymentLedger{
		{
			BudgetID:   b.ID,
			FaseIndex:  0,
			NombreFase: "Fase 1",
			TotalFase:  100,
			Pagos: []billing.LedgerEntry{
				{Monto: 60},
				{Monto: 40, Anulado: true},
				{Monto: 20},
			},
		},
	}
	return b, ledgers
}

func TestBuildSummaryDerivesFromLedgers(t *testing.T) {
	b, ledgers := summaryFixture()

	got := BuildSummary(b, ledgers)

	if got.TotalGeneral != 200 {
		t.Fatalf("total general: want=200 got=%v", got.TotalGeneral)
	}
	if got.TotalPagado != 80 {
		t.Fatalf("total paid: want=80 got=%v", got.TotalPagado)
	}
	if got.SaldoPendienteTotal != 120 {
		t.Fatalf("pending total: want=120 got=%v", got.SaldoPendienteTotal)
	}
	if got.PorcentajePagado != 40 {
		t.Fatalf("percentage paid: want=40 got=%v", got.PorcentajePagado)
	}
	if got.EstadoPagoGeneral != billing.StatusParcial {
		t.Fatalf("overall status: want=%q got=%q", billing.StatusParcial, got.EstadoPagoGeneral)
	}

	if len(got.Fases) != 2 {
		t.Fatalf("phase count: want=2 got=%d", len(got.Fases))
	}
	f0 := got.Fases[0]
	if f0.TotalPagado != 80 {
		t.Fatalf("phase 0 paid: want=80 got=%v", f0.TotalPagado)
	}
	if f0.CantidadPagos != 2 {
		t.Fatalf("phase 0 payment count excluding voided: want=2 got=%d", f0.CantidadPagos)
	}
	if f0.EstadoPago != billing.StatusParcial {
		t.Fatalf("phase 0 status: want=%q got=%q", billing.StatusParcial, f0.EstadoPago)
	}
	if len(f0.Pagos) != 3 {
		t.Fatalf("phase 0 should list every entry including voided: want=3 got=%d", len(f0.Pagos))
	}

	// Phase without a ledger reports as untouched.
	f1 := got.Fases[1]
	if f1.TotalPagado != 0 || f1.CantidadPagos != 0 {
		t.Fatalf("phase 1 should have no payments, got paid=%v count=%d", f1.TotalPagado, f1.CantidadPagos)
	}
	if f1.EstadoPago != billing.StatusPendiente {
		t.Fatalf("phase 1 status: want=%q got=%q", billing.StatusPendiente, f1.EstadoPago)
	}
	if f1.Pagos == nil || len(f1.Pagos) != 0 {
		t.Fatalf("phase 1 pagos should be an empty slice, got=%#v", f1.Pagos)
	}
}

func TestBuildSummaryEmitsEmptyPagosArray(t *testing.T) {
	b, _ := summaryFixture()

	got := BuildSummary(b, nil)

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	if strings.Contains(string(data), `"pagos":null`) {
		t.Fatalf("summary serialized null pagos: %s", data)
	}
	if !strings.Contains(string(data), `"pagos":[]`) {
		t.Fatalf("summary missing empty pagos array: %s", data)
	}
}

func TestBuildSummaryZeroTotalBudget(t *testing.T) {
	b := &billing.Budget{
		ID: uuid.New(),
		Fases: billing.PhaseList{
			{Nombre: "Fase Principal", Procedimientos: []billing.Procedure{{Nombre: "Consulta", NumeroPiezas: 1, CostoPorUnidad: 0}}},
		},
	}
	b.ComputeTotals()

	got := BuildSummary(b, nil)

	if got.PorcentajePagado != 0 {
		t.Fatalf("percentage for zero-total budget: want=0 got=%v", got.PorcentajePagado)
	}
	if got.EstadoPagoGeneral != billing.StatusPendiente {
		t.Fatalf("status for zero-total budget: want=%q got=%q", billing.StatusPendiente, got.EstadoPagoGeneral)
	}
}

func TestValidateRegisterInput(t *testing.T) {
	base := RegisterPaymentInput{
		Descripcion: "Abono inicial",
		Monto:       50,
		MetodoPago:  billing.MetodoEfectivo,
	}

	if err := validateRegisterInput(base); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RegisterPaymentInput)
	}{
		{"empty description", func(in *RegisterPaymentInput) { in.Descripcion = "" }},
		{"zero amount", func(in *RegisterPaymentInput) { in.Monto = 0 }},
		{"negative amount", func(in *RegisterPaymentInput) { in.Monto = -10 }},
		{"unknown method", func(in *RegisterPaymentInput) { in.MetodoPago = "bitcoin" }},
		{"unknown receipt type", func(in *RegisterPaymentInput) { in.ComprobanteTipo = "boleta" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			if err := validateRegisterInput(in); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
