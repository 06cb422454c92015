package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

func logEntry(day int, month time.Month, metodo string, monto float64) *billing.TransactionEntry {
	return &billing.TransactionEntry{
		ID:           uuid.New(),
		BudgetID:     uuid.New(),
		PacienteID:   uuid.New(),
		Fecha:        time.Date(2026, month, day, 10, 0, 0, 0, time.UTC),
		Monto:        monto,
		MetodoPago:   metodo,
		ConceptoPago: "Pago de fase 1: abono",
	}
}

func TestGroupByMethod(t *testing.T) {
	entries := []*billing.TransactionEntry{
		logEntry(3, time.March, billing.MetodoEfectivo, 100),
		logEntry(10, time.March, billing.MetodoTarjeta, 50),
		logEntry(15, time.March, billing.MetodoEfectivo, 25),
	}

	groups := GroupByMethod(entries)

	if len(groups) != 2 {
		t.Fatalf("group count: want=2 got=%d", len(groups))
	}
	// Sorted alphabetically: efectivo, tarjeta.
	if groups[0].MetodoPago != billing.MetodoEfectivo {
		t.Fatalf("first group: want=%q got=%q", billing.MetodoEfectivo, groups[0].MetodoPago)
	}
	if groups[0].TotalMonto != 125 {
		t.Fatalf("efectivo total: want=125 got=%v", groups[0].TotalMonto)
	}
	if groups[0].CantidadTransacciones != 2 {
		t.Fatalf("efectivo count: want=2 got=%d", groups[0].CantidadTransacciones)
	}
	if len(groups[0].Transacciones) != 2 {
		t.Fatalf("efectivo transactions: want=2 got=%d", len(groups[0].Transacciones))
	}
	if groups[1].MetodoPago != billing.MetodoTarjeta || groups[1].TotalMonto != 50 {
		t.Fatalf("tarjeta group: got=%+v", groups[1])
	}
}

func TestGroupByMethodEmpty(t *testing.T) {
	if groups := GroupByMethod(nil); len(groups) != 0 {
		t.Fatalf("empty input: want=0 groups got=%d", len(groups))
	}
}

func TestGroupByMonthAndMethod(t *testing.T) {
	entries := []*billing.TransactionEntry{
		logEntry(5, time.January, billing.MetodoEfectivo, 100),
		logEntry(20, time.January, billing.MetodoTransferencia, 200),
		logEntry(2, time.February, billing.MetodoEfectivo, 75),
		logEntry(9, time.January, billing.MetodoEfectivo, 50),
	}

	groups := GroupByMonthAndMethod(entries)

	if len(groups) != 3 {
		t.Fatalf("group count: want=3 got=%d", len(groups))
	}
	// Sorted by month then method.
	want := []AnnualGroup{
		{Mes: 1, MetodoPago: billing.MetodoEfectivo, TotalMonto: 150, CantidadTransacciones: 2},
		{Mes: 1, MetodoPago: billing.MetodoTransferencia, TotalMonto: 200, CantidadTransacciones: 1},
		{Mes: 2, MetodoPago: billing.MetodoEfectivo, TotalMonto: 75, CantidadTransacciones: 1},
	}
	for i := range want {
		if groups[i] != want[i] {
			t.Fatalf("group %d: want=%+v got=%+v", i, want[i], groups[i])
		}
	}
}

func TestMethodTotals(t *testing.T) {
	entries := []*billing.TransactionEntry{
		logEntry(1, time.June, billing.MetodoCheque, 10),
		logEntry(2, time.June, billing.MetodoCheque, 15),
		logEntry(3, time.June, billing.MetodoTarjeta, 5),
	}

	totals := MethodTotals(entries)

	if totals[billing.MetodoCheque] != 25 {
		t.Fatalf("cheque total: want=25 got=%v", totals[billing.MetodoCheque])
	}
	if totals[billing.MetodoTarjeta] != 5 {
		t.Fatalf("tarjeta total: want=5 got=%v", totals[billing.MetodoTarjeta])
	}
	if len(totals) != 2 {
		t.Fatalf("method count: want=2 got=%d", len(totals))
	}
}

func TestSumMontos(t *testing.T) {
	entries := []*billing.TransactionEntry{
		logEntry(1, time.June, billing.MetodoEfectivo, 10.5),
		logEntry(2, time.June, billing.MetodoEfectivo, 9.5),
	}
	if got := sumMontos(entries); got != 20 {
		t.Fatalf("sum: want=20 got=%v", got)
	}
	if got := sumMontos(nil); got != 0 {
		t.Fatalf("empty sum: want=0 got=%v", got)
	}
}

type fakeTxLogRepo struct {
	lastFrom time.Time
	lastTo   time.Time
	entries  []*billing.TransactionEntry
}

func (f *fakeTxLogRepo) Create(dbc dbctx.Context, row *billing.TransactionEntry) error { return nil }
func (f *fakeTxLogRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.TransactionEntry, error) {
	return nil, nil
}
func (f *fakeTxLogRepo) List(dbc dbctx.Context) ([]*billing.TransactionEntry, error) {
	return f.entries, nil
}
func (f *fakeTxLogRepo) ListByDateRange(dbc dbctx.Context, from, to time.Time) ([]*billing.TransactionEntry, error) {
	f.lastFrom, f.lastTo = from, to
	return f.entries, nil
}
func (f *fakeTxLogRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) error     { return nil }
func (f *fakeTxLogRepo) DeleteByBudget(dbc dbctx.Context, id uuid.UUID) error { return nil }
func (f *fakeTxLogRepo) DeleteAll(dbc dbctx.Context) error                    { return nil }

func newReportFixture(t *testing.T) (*fakeTxLogRepo, ReportService) {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	txlog := &fakeTxLogRepo{}
	svc := NewReportService(log, nil, txlog, NewReportCache(nil, log))
	return txlog, svc
}

func TestMonthlyReportScansHalfOpenWindow(t *testing.T) {
	txlog, svc := newReportFixture(t)
	txlog.entries = []*billing.TransactionEntry{
		logEntry(5, time.December, billing.MetodoEfectivo, 100),
	}

	report, err := svc.Monthly(context.Background(), 12, 2026)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}

	wantFrom := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !txlog.lastFrom.Equal(wantFrom) || !txlog.lastTo.Equal(wantTo) {
		t.Fatalf("scan window: want=[%v, %v) got=[%v, %v)", wantFrom, wantTo, txlog.lastFrom, txlog.lastTo)
	}
	if report.TotalMensual != 100 {
		t.Fatalf("monthly total: want=100 got=%v", report.TotalMensual)
	}
}

func TestMonthlyReportValidatesParams(t *testing.T) {
	_, svc := newReportFixture(t)

	if _, err := svc.Monthly(context.Background(), 0, 2026); err == nil {
		t.Fatalf("expected error for month 0")
	}
	if _, err := svc.Monthly(context.Background(), 13, 2026); err == nil {
		t.Fatalf("expected error for month 13")
	}
	if _, err := svc.Monthly(context.Background(), 6, 0); err == nil {
		t.Fatalf("expected error for year 0")
	}
}

func TestAnnualReportScansFullYear(t *testing.T) {
	txlog, svc := newReportFixture(t)

	if _, err := svc.Annual(context.Background(), 2026); err != nil {
		t.Fatalf("Annual: %v", err)
	}

	wantFrom := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !txlog.lastFrom.Equal(wantFrom) || !txlog.lastTo.Equal(wantTo) {
		t.Fatalf("scan window: want=[%v, %v) got=[%v, %v)", wantFrom, wantTo, txlog.lastFrom, txlog.lastTo)
	}
}

func TestRangeReportInclusiveEndDate(t *testing.T) {
	txlog, svc := newReportFixture(t)

	desde := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	hasta := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	report, err := svc.Range(context.Background(), desde, hasta)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if !txlog.lastTo.Equal(hasta.AddDate(0, 0, 1)) {
		t.Fatalf("end of scan window: want=%v got=%v", hasta.AddDate(0, 0, 1), txlog.lastTo)
	}
	if report.FechaFin != hasta {
		t.Fatalf("report end date: want=%v got=%v", hasta, report.FechaFin)
	}

	if _, err := svc.Range(context.Background(), hasta, desde); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}
