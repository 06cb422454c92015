package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sgco/clinic-backend/internal/data/repos"
	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/platform/apierr"
	"github.com/sgco/clinic-backend/internal/platform/dbctx"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

type ProcedureInput struct {
	Nombre         string  `json:"nombre"`
	NumeroPiezas   int     `json:"numeroPiezas"`
	CostoPorUnidad float64 `json:"costoPorUnidad"`
}

type PhaseInput struct {
	Nombre         string           `json:"nombre"`
	Descripcion    string           `json:"descripcion"`
	Procedimientos []ProcedureInput `json:"procedimientos"`
}

type CreateBudgetInput struct {
	PacienteID      uuid.UUID    `json:"paciente"`
	Especialidad    string       `json:"especialidad"`
	Fases           []PhaseInput `json:"fases"`
	TreatmentPlanID *uuid.UUID   `json:"treatmentPlan"`
}

// PatientRef is the name/cédula pair embedded in budget responses.
type PatientRef struct {
	NombrePaciente string `json:"nombrePaciente"`
	NumeroCedula   string `json:"numeroCedula"`
}

type BudgetDetail struct {
	*billing.Budget
	PacienteInfo *PatientRef `json:"pacienteInfo,omitempty"`
}

type BudgetService interface {
	Create(ctx context.Context, in CreateBudgetInput) (*BudgetDetail, error)
	CreateFromTreatmentPlan(ctx context.Context, planID uuid.UUID) (*BudgetDetail, error)
	Get(ctx context.Context, id uuid.UUID) (*BudgetDetail, error)
	List(ctx context.Context) ([]*BudgetDetail, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*BudgetDetail, error)
	GetByTreatmentPlan(ctx context.Context, planID uuid.UUID) (*BudgetDetail, error)
	Update(ctx context.Context, id uuid.UUID, in CreateBudgetInput) (*BudgetDetail, error)
	AddProcedure(ctx context.Context, id uuid.UUID, faseIndex int, in ProcedureInput) (*BudgetDetail, error)
	ReplaceProcedures(ctx context.Context, id uuid.UUID, faseIndex int, in []ProcedureInput) (*BudgetDetail, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type budgetService struct {
	db       *gorm.DB
	log      *logger.Logger
	budgets  repos.BudgetRepo
	ledgers  repos.LedgerRepo
	patients repos.PatientRepo
	plans    repos.TreatmentPlanRepo
}

func NewBudgetService(
	db *gorm.DB,
	baseLog *logger.Logger,
	budgets repos.BudgetRepo,
	ledgers repos.LedgerRepo,
	patients repos.PatientRepo,
	plans repos.TreatmentPlanRepo,
) BudgetService {
	return &budgetService{
		db:       db,
		log:      baseLog.With("service", "BudgetService"),
		budgets:  budgets,
		ledgers:  ledgers,
		patients: patients,
		plans:    plans,
	}
}

func validateBudgetInput(in CreateBudgetInput) error {
	if in.PacienteID == uuid.Nil {
		return apierr.Validation("paciente: el ID del paciente es obligatorio")
	}
	if in.Especialidad == "" {
		return apierr.Validation("especialidad: la especialidad es obligatoria")
	}
	if len(in.Fases) == 0 {
		return apierr.Validation("fases: debe incluir al menos una fase")
	}
	for i, fase := range in.Fases {
		if fase.Nombre == "" {
			return apierr.Validation("fases[%d].nombre: el nombre de la fase es obligatorio", i)
		}
		if len(fase.Procedimientos) == 0 {
			return apierr.Validation("fases[%d].procedimientos: cada fase debe contener al menos un procedimiento", i)
		}
		for j, proc := range fase.Procedimientos {
			if proc.Nombre == "" {
				return apierr.Validation("fases[%d].procedimientos[%d].nombre: el nombre del procedimiento es obligatorio", i, j)
			}
			if proc.NumeroPiezas <= 0 {
				return apierr.Validation("fases[%d].procedimientos[%d].numeroPiezas: el número de piezas debe ser un entero positivo", i, j)
			}
			if proc.CostoPorUnidad < 0 {
				return apierr.Validation("fases[%d].procedimientos[%d].costoPorUnidad: el costo por unidad no puede ser negativo", i, j)
			}
		}
	}
	return nil
}

func phasesFromInput(in []PhaseInput) billing.PhaseList {
	fases := make(billing.PhaseList, 0, len(in))
	for _, f := range in {
		procs := make([]billing.Procedure, 0, len(f.Procedimientos))
		for _, p := range f.Procedimientos {
			procs = append(procs, billing.Procedure{
				Nombre:         p.Nombre,
				NumeroPiezas:   p.NumeroPiezas,
				CostoPorUnidad: p.CostoPorUnidad,
			})
		}
		fases = append(fases, billing.Phase{
			Nombre:         f.Nombre,
			Descripcion:    f.Descripcion,
			Procedimientos: procs,
		})
	}
	return fases
}

func (s *budgetService) attachPatient(dbc dbctx.Context, b *billing.Budget) *BudgetDetail {
	detail := &BudgetDetail{Budget: b}
	patient, err := s.patients.GetByID(dbc, b.PacienteID)
	if err != nil {
		s.log.Warn("Could not load patient for budget", "budget_id", b.ID, "error", err)
		return detail
	}
	if patient != nil {
		detail.PacienteInfo = &PatientRef{
			NombrePaciente: patient.NombrePaciente,
			NumeroCedula:   patient.NumeroCedula,
		}
	}
	return detail
}

func (s *budgetService) attachPatients(dbc dbctx.Context, rows []*billing.Budget) []*BudgetDetail {
	out := make([]*BudgetDetail, 0, len(rows))
	for _, b := range rows {
		out = append(out, s.attachPatient(dbc, b))
	}
	return out
}

func (s *budgetService) Create(ctx context.Context, in CreateBudgetInput) (*BudgetDetail, error) {
	if err := validateBudgetInput(in); err != nil {
		return nil, err
	}

	var created *billing.Budget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		exists, err := s.patients.Exists(dbc, in.PacienteID)
		if err != nil {
			return err
		}
		if !exists {
			return apierr.Validation("paciente: el paciente no existe")
		}

		if in.TreatmentPlanID != nil {
			planExists, err := s.plans.Exists(dbc, *in.TreatmentPlanID)
			if err != nil {
				return err
			}
			if !planExists {
				return apierr.NotFound("Planificación no encontrada")
			}
			existing, err := s.budgets.GetByTreatmentPlanID(dbc, *in.TreatmentPlanID)
			if err != nil {
				return err
			}
			if existing != nil {
				return apierr.BusinessRule("Ya existe un presupuesto para esta planificación")
			}
		}

		row := &billing.Budget{
			PacienteID:      in.PacienteID,
			TreatmentPlanID: in.TreatmentPlanID,
			Fecha:           time.Now().UTC(),
			Especialidad:    in.Especialidad,
			Fases:           phasesFromInput(in.Fases),
		}
		row.ComputeTotals()
		if err := s.budgets.Create(dbc, row); err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Budget created", "budget_id", created.ID, "total_general", created.TotalGeneral)
	return s.attachPatient(dbctx.Context{Ctx: ctx}, created), nil
}

func (s *budgetService) CreateFromTreatmentPlan(ctx context.Context, planID uuid.UUID) (*BudgetDetail, error) {
	var created *billing.Budget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		plan, err := s.plans.GetByID(dbc, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return apierr.NotFound("Planificación no encontrada")
		}

		existing, err := s.budgets.GetByTreatmentPlanID(dbc, planID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apierr.BusinessRule("Ya existe un presupuesto para esta planificación")
		}

		// One synthetic phase with a zero-cost placeholder per activity;
		// the odontologist prices it afterwards.
		procs := make([]billing.Procedure, 0, len(plan.Actividades))
		for _, act := range plan.Actividades {
			procs = append(procs, billing.Procedure{
				Nombre:         act.ActividadPlanTrat,
				NumeroPiezas:   1,
				CostoPorUnidad: 0,
			})
		}

		row := &billing.Budget{
			PacienteID:      plan.PacienteID,
			TreatmentPlanID: &plan.ID,
			Fecha:           time.Now().UTC(),
			Especialidad:    plan.Especialidad,
			Fases: billing.PhaseList{{
				Nombre:         "Fase Principal",
				Descripcion:    "Actividades de la planificación",
				Procedimientos: procs,
			}},
		}
		row.ComputeTotals()
		if err := s.budgets.Create(dbc, row); err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Budget derived from treatment plan", "budget_id", created.ID, "plan_id", planID)
	return s.attachPatient(dbctx.Context{Ctx: ctx}, created), nil
}

func (s *budgetService) Get(ctx context.Context, id uuid.UUID) (*BudgetDetail, error) {
	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.budgets.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound("Presupuesto no encontrado")
	}
	return s.attachPatient(dbc, row), nil
}

func (s *budgetService) List(ctx context.Context) ([]*BudgetDetail, error) {
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.budgets.List(dbc)
	if err != nil {
		return nil, err
	}
	return s.attachPatients(dbc, rows), nil
}

func (s *budgetService) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*BudgetDetail, error) {
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.budgets.ListByPatientID(dbc, patientID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apierr.NotFound("No se encontraron presupuestos para este paciente")
	}
	return s.attachPatients(dbc, rows), nil
}

func (s *budgetService) GetByTreatmentPlan(ctx context.Context, planID uuid.UUID) (*BudgetDetail, error) {
	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.budgets.GetByTreatmentPlanID(dbc, planID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound("Presupuesto no encontrado para esta planificación")
	}
	return s.attachPatient(dbc, row), nil
}

// Update replaces the cost structure of a budget. Paid caches carry over by
// phase index so registered payments survive a re-quote.
func (s *budgetService) Update(ctx context.Context, id uuid.UUID, in CreateBudgetInput) (*BudgetDetail, error) {
	if err := validateBudgetInput(in); err != nil {
		return nil, err
	}

	var updated *billing.Budget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		row, err := s.budgets.LockByID(dbc, id)
		if err != nil {
			return err
		}
		if row == nil {
			return apierr.NotFound("Presupuesto no encontrado")
		}

		if in.TreatmentPlanID != nil {
			existing, err := s.budgets.GetByTreatmentPlanID(dbc, *in.TreatmentPlanID)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != row.ID {
				return apierr.BusinessRule("Ya existe un presupuesto para esta planificación")
			}
		}

		fases := phasesFromInput(in.Fases)
		for i := range fases {
			if i < len(row.Fases) {
				fases[i].TotalPagado = row.Fases[i].TotalPagado
			}
		}
		row.PacienteID = in.PacienteID
		row.Especialidad = in.Especialidad
		row.TreatmentPlanID = in.TreatmentPlanID
		row.Fases = fases
		row.ComputeTotals()

		if err := s.resyncLedgers(dbc, row); err != nil {
			return err
		}
		if err := s.budgets.Save(dbc, row); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.attachPatient(dbctx.Context{Ctx: ctx}, updated), nil
}

func (s *budgetService) AddProcedure(ctx context.Context, id uuid.UUID, faseIndex int, in ProcedureInput) (*BudgetDetail, error) {
	return s.mutatePhase(ctx, id, faseIndex, func(fase *billing.Phase) error {
		if in.Nombre == "" {
			return apierr.Validation("nombre: el nombre del procedimiento es obligatorio")
		}
		if in.NumeroPiezas <= 0 {
			return apierr.Validation("numeroPiezas: el número de piezas debe ser un entero positivo")
		}
		if in.CostoPorUnidad < 0 {
			return apierr.Validation("costoPorUnidad: el costo por unidad no puede ser negativo")
		}
		fase.Procedimientos = append(fase.Procedimientos, billing.Procedure{
			Nombre:         in.Nombre,
			NumeroPiezas:   in.NumeroPiezas,
			CostoPorUnidad: in.CostoPorUnidad,
		})
		return nil
	})
}

func (s *budgetService) ReplaceProcedures(ctx context.Context, id uuid.UUID, faseIndex int, in []ProcedureInput) (*BudgetDetail, error) {
	return s.mutatePhase(ctx, id, faseIndex, func(fase *billing.Phase) error {
		if len(in) == 0 {
			return apierr.Validation("procedimientos: cada fase debe contener al menos un procedimiento")
		}
		procs := make([]billing.Procedure, 0, len(in))
		for j, p := range in {
			if p.Nombre == "" {
				return apierr.Validation("procedimientos[%d].nombre: el nombre del procedimiento es obligatorio", j)
			}
			if p.NumeroPiezas <= 0 {
				return apierr.Validation("procedimientos[%d].numeroPiezas: el número de piezas debe ser un entero positivo", j)
			}
			if p.CostoPorUnidad < 0 {
				return apierr.Validation("procedimientos[%d].costoPorUnidad: el costo por unidad no puede ser negativo", j)
			}
			procs = append(procs, billing.Procedure{
				Nombre:         p.Nombre,
				NumeroPiezas:   p.NumeroPiezas,
				CostoPorUnidad: p.CostoPorUnidad,
			})
		}
		fase.Procedimientos = procs
		return nil
	})
}

func (s *budgetService) mutatePhase(ctx context.Context, id uuid.UUID, faseIndex int, mutate func(*billing.Phase) error) (*BudgetDetail, error) {
	var updated *billing.Budget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		row, err := s.budgets.LockByID(dbc, id)
		if err != nil {
			return err
		}
		if row == nil {
			return apierr.NotFound("Presupuesto no encontrado")
		}
		if faseIndex < 0 || faseIndex >= len(row.Fases) {
			return apierr.Validation("Índice de fase inválido")
		}
		if err := mutate(&row.Fases[faseIndex]); err != nil {
			return err
		}
		row.ComputeTotals()

		if err := s.resyncLedgers(dbc, row); err != nil {
			return err
		}
		if err := s.budgets.Save(dbc, row); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.attachPatient(dbctx.Context{Ctx: ctx}, updated), nil
}

// resyncLedgers refreshes the per-phase ledger snapshots after a cost-structure
// edit. An edit that would push a phase total below the amount already paid on
// its ledger is rejected so paid <= total keeps holding.
func (s *budgetService) resyncLedgers(dbc dbctx.Context, row *billing.Budget) error {
	ledgers, err := s.ledgers.ListByBudget(dbc, row.ID)
	if err != nil {
		return err
	}
	for _, ledger := range ledgers {
		if ledger.FaseIndex >= len(row.Fases) {
			return apierr.BusinessRule("la fase %d tiene pagos registrados y no puede eliminarse", ledger.FaseIndex)
		}
		fase := row.Fases[ledger.FaseIndex]
		paid := ledger.TotalPagado()
		if fase.Total < paid {
			return apierr.BusinessRule(
				"el nuevo total de la fase %d (%.2f) es menor que lo ya pagado (%.2f)",
				ledger.FaseIndex, fase.Total, paid,
			)
		}
		if ledger.NombreFase == fase.Nombre && ledger.TotalFase == fase.Total {
			continue
		}
		if err := s.ledgers.UpdateFields(dbc, ledger.ID, map[string]interface{}{
			"nombre_fase": fase.Nombre,
			"total_fase":  fase.Total,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *budgetService) Delete(ctx context.Context, id uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.budgets.GetByID(dbc, id)
	if err != nil {
		return err
	}
	if row == nil {
		return apierr.NotFound("Presupuesto no encontrado")
	}
	if row.TotalPagado > 0 {
		s.log.Warn("Deleting budget with registered payments", "budget_id", id, "total_pagado", row.TotalPagado)
	}
	return s.budgets.Delete(dbc, id)
}
