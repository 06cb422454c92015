package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sgco/clinic-backend/internal/data/repos"
	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/platform/apierr"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

type RecordTransactionInput struct {
	PresupuestoID uuid.UUID `json:"presupuesto"`
	Monto         float64   `json:"monto"`
	MetodoPago    string    `json:"metodoPago"`
	ConceptoPago  string    `json:"conceptoPago"`
}

type ReportTransaction struct {
	Fecha        time.Time `json:"fecha"`
	Monto        float64   `json:"monto"`
	PacienteID   uuid.UUID `json:"paciente"`
	ConceptoPago string    `json:"conceptoPago"`
}

// MethodGroup is one payment method's slice of a monthly report.
type MethodGroup struct {
	MetodoPago            string              `json:"metodoPago"`
	TotalMonto            float64             `json:"totalMonto"`
	CantidadTransacciones int                 `json:"cantidadTransacciones"`
	Transacciones         []ReportTransaction `json:"transacciones"`
}

type MonthlyReport struct {
	Mes          int           `json:"mes"`
	Anio         int           `json:"año"`
	Reporte      []MethodGroup `json:"reporte"`
	TotalMensual float64       `json:"totalMensual"`
}

// AnnualGroup is one (month, method) cell of an annual report.
type AnnualGroup struct {
	Mes                   int     `json:"mes"`
	MetodoPago            string  `json:"metodoPago"`
	TotalMonto            float64 `json:"totalMonto"`
	CantidadTransacciones int     `json:"cantidadTransacciones"`
}

type AnnualReport struct {
	Anio       int           `json:"año"`
	Reporte    []AnnualGroup `json:"reporte"`
	TotalAnual float64       `json:"totalAnual"`
}

type RangeReport struct {
	FechaInicio        time.Time                  `json:"fechaInicio"`
	FechaFin           time.Time                  `json:"fechaFin"`
	Reports            []*billing.TransactionEntry `json:"reports"`
	TotalPeriodo       float64                    `json:"totalPeriodo"`
	ResumenMetodosPago map[string]float64         `json:"resumenMetodosPago"`
}

type ReportService interface {
	Record(ctx context.Context, in RecordTransactionInput) (*billing.TransactionEntry, error)
	ListAll(ctx context.Context) ([]*billing.TransactionEntry, error)
	Monthly(ctx context.Context, mes, anio int) (*MonthlyReport, error)
	Annual(ctx context.Context, anio int) (*AnnualReport, error)
	Range(ctx context.Context, desde, hasta time.Time) (*RangeReport, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type reportService struct {
	log     *logger.Logger
	budgets repos.BudgetRepo
	txlog   repos.TransactionLogRepo
	cache   *ReportCache
}

func NewReportService(
	baseLog *logger.Logger,
	budgets repos.BudgetRepo,
	txlog repos.TransactionLogRepo,
	cache *ReportCache,
) ReportService {
	return &reportService{
		log:     baseLog.With("service", "ReportService"),
		budgets: budgets,
		txlog:   txlog,
		cache:   cache,
	}
}

// Record appends a standalone transaction to the financial log, outside the
// per-phase payment flow.
func (s *reportService) Record(ctx context.Context, in RecordTransactionInput) (*billing.TransactionEntry, error) {
	if in.Monto <= 0 {
		return nil, apierr.Validation("monto: el monto debe ser mayor que cero")
	}
	if !billing.ValidMetodoPago(in.MetodoPago) {
		return nil, apierr.Validation("metodoPago: método de pago inválido: %q", in.MetodoPago)
	}
	if in.ConceptoPago == "" {
		return nil, apierr.Validation("conceptoPago: el concepto de pago es obligatorio")
	}

	dbc := dbctx.Context{Ctx: ctx}
	budget, err := s.budgets.GetByID(dbc, in.PresupuestoID)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		return nil, apierr.NotFound("Presupuesto no encontrado")
	}

	row := &billing.TransactionEntry{
		BudgetID:     budget.ID,
		PacienteID:   budget.PacienteID,
		Fecha:        time.Now().UTC(),
		Monto:        in.Monto,
		MetodoPago:   in.MetodoPago,
		ConceptoPago: in.ConceptoPago,
	}
	if err := s.txlog.Create(dbc, row); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	return row, nil
}

func (s *reportService) ListAll(ctx context.Context) ([]*billing.TransactionEntry, error) {
	return s.txlog.List(dbctx.Context{Ctx: ctx})
}

func (s *reportService) Monthly(ctx context.Context, mes, anio int) (*MonthlyReport, error) {
	if mes < 1 || mes > 12 {
		return nil, apierr.Validation("mes: el mes debe estar entre 1 y 12")
	}
	if anio < 1 {
		return nil, apierr.Validation("año: el año es inválido")
	}

	key := s.cache.Key(ctx, "mensual", anio, mes)
	var cached MonthlyReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	from := time.Date(anio, time.Month(mes), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	entries, err := s.txlog.ListByDateRange(dbctx.Context{Ctx: ctx}, from, to)
	if err != nil {
		return nil, err
	}

	report := &MonthlyReport{
		Mes:          mes,
		Anio:         anio,
		Reporte:      GroupByMethod(entries),
		TotalMensual: sumMontos(entries),
	}
	s.cache.Set(ctx, key, report)
	return report, nil
}

func (s *reportService) Annual(ctx context.Context, anio int) (*AnnualReport, error) {
	if anio < 1 {
		return nil, apierr.Validation("año: el año es inválido")
	}

	key := s.cache.Key(ctx, "anual", anio)
	var cached AnnualReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	from := time.Date(anio, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	entries, err := s.txlog.ListByDateRange(dbctx.Context{Ctx: ctx}, from, to)
	if err != nil {
		return nil, err
	}

	report := &AnnualReport{
		Anio:       anio,
		Reporte:    GroupByMonthAndMethod(entries),
		TotalAnual: sumMontos(entries),
	}
	s.cache.Set(ctx, key, report)
	return report, nil
}

func (s *reportService) Range(ctx context.Context, desde, hasta time.Time) (*RangeReport, error) {
	if desde.IsZero() || hasta.IsZero() {
		return nil, apierr.Validation("fechaInicio y fechaFin son obligatorias")
	}
	if hasta.Before(desde) {
		return nil, apierr.Validation("fechaFin debe ser posterior a fechaInicio")
	}

	// End date is inclusive, so scan up to the following midnight.
	to := hasta.AddDate(0, 0, 1)
	entries, err := s.txlog.ListByDateRange(dbctx.Context{Ctx: ctx}, desde, to)
	if err != nil {
		return nil, err
	}

	return &RangeReport{
		FechaInicio:        desde,
		FechaFin:           hasta,
		Reports:            entries,
		TotalPeriodo:       sumMontos(entries),
		ResumenMetodosPago: MethodTotals(entries),
	}, nil
}

func (s *reportService) Delete(ctx context.Context, id uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.txlog.GetByID(dbc, id)
	if err != nil {
		return err
	}
	if row == nil {
		return apierr.NotFound("Transacción no encontrada")
	}
	if err := s.txlog.DeleteByID(dbc, id); err != nil {
		return err
	}
	s.log.Warn("Transaction deleted from financial log", "transaction_id", id, "monto", row.Monto)
	s.cache.Invalidate(ctx)
	return nil
}

// GroupByMethod buckets entries per payment method, methods sorted
// alphabetically for a stable response shape.
func GroupByMethod(entries []*billing.TransactionEntry) []MethodGroup {
	byMethod := map[string]*MethodGroup{}
	for _, e := range entries {
		g, ok := byMethod[e.MetodoPago]
		if !ok {
			g = &MethodGroup{MetodoPago: e.MetodoPago}
			byMethod[e.MetodoPago] = g
		}
		g.TotalMonto += e.Monto
		g.CantidadTransacciones++
		g.Transacciones = append(g.Transacciones, ReportTransaction{
			Fecha:        e.Fecha,
			Monto:        e.Monto,
			PacienteID:   e.PacienteID,
			ConceptoPago: e.ConceptoPago,
		})
	}

	out := make([]MethodGroup, 0, len(byMethod))
	for _, g := range byMethod {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MetodoPago < out[j].MetodoPago })
	return out
}

// GroupByMonthAndMethod buckets entries per (month, method), sorted by month
// then method.
func GroupByMonthAndMethod(entries []*billing.TransactionEntry) []AnnualGroup {
	type cell struct {
		mes    int
		metodo string
	}
	byCell := map[cell]*AnnualGroup{}
	for _, e := range entries {
		c := cell{mes: int(e.Fecha.Month()), metodo: e.MetodoPago}
		g, ok := byCell[c]
		if !ok {
			g = &AnnualGroup{Mes: c.mes, MetodoPago: c.metodo}
			byCell[c] = g
		}
		g.TotalMonto += e.Monto
		g.CantidadTransacciones++
	}

	out := make([]AnnualGroup, 0, len(byCell))
	for _, g := range byCell {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mes != out[j].Mes {
			return out[i].Mes < out[j].Mes
		}
		return out[i].MetodoPago < out[j].MetodoPago
	})
	return out
}

func MethodTotals(entries []*billing.TransactionEntry) map[string]float64 {
	out := map[string]float64{}
	for _, e := range entries {
		out[e.MetodoPago] += e.Monto
	}
	return out
}

func sumMontos(entries []*billing.TransactionEntry) float64 {
	total := 0.0
	for _, e := range entries {
		total += e.Monto
	}
	return total
}
