package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sgco/clinic-backend/internal/http/response"
	"github.com/sgco/clinic-backend/internal/platform/logger"
	"github.com/sgco/clinic-backend/internal/services"
)

type BudgetHandler struct {
	log     *logger.Logger
	budgets services.BudgetService
}

func NewBudgetHandler(log *logger.Logger, budgets services.BudgetService) *BudgetHandler {
	return &BudgetHandler{
		log:     log.With("handler", "BudgetHandler"),
		budgets: budgets,
	}
}

// POST /api/budgets
func (h *BudgetHandler) Create(c *gin.Context) {
	var in services.CreateBudgetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	detail, err := h.budgets.Create(c.Request.Context(), in)
	if err != nil {
		h.log.Error("Create budget failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, detail)
}

// POST /api/budgets/from-treatment/:planId
func (h *BudgetHandler) CreateFromTreatmentPlan(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("planId"))
	if err != nil || planID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_plan_id", err)
		return
	}

	detail, err := h.budgets.CreateFromTreatmentPlan(c.Request.Context(), planID)
	if err != nil {
		h.log.Error("Create budget from plan failed", "error", err, "plan_id", planID)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, detail)
}

// GET /api/budgets
func (h *BudgetHandler) List(c *gin.Context) {
	rows, err := h.budgets.List(c.Request.Context())
	if err != nil {
		h.log.Error("List budgets failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, rows)
}

// GET /api/budgets/:id
func (h *BudgetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_budget_id", err)
		return
	}

	detail, err := h.budgets.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// GET /api/budgets/paciente/:pacienteId
func (h *BudgetHandler) ListByPatient(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("pacienteId"))
	if err != nil || patientID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_patient_id", err)
		return
	}

	rows, err := h.budgets.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, rows)
}

// GET /api/budgets/treatment/:planId
func (h *BudgetHandler) GetByTreatmentPlan(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("planId"))
	if err != nil || planID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_plan_id", err)
		return
	}

	detail, err := h.budgets.GetByTreatmentPlan(c.Request.Context(), planID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// PUT /api/budgets/:id
func (h *BudgetHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_budget_id", err)
		return
	}
	var in services.CreateBudgetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	detail, err := h.budgets.Update(c.Request.Context(), id, in)
	if err != nil {
		h.log.Error("Update budget failed", "error", err, "budget_id", id)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// POST /api/budgets/:id/fase/:faseIndex/procedimiento
func (h *BudgetHandler) AddProcedure(c *gin.Context) {
	id, faseIndex, ok := h.budgetPhaseParams(c)
	if !ok {
		return
	}
	var in services.ProcedureInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	detail, err := h.budgets.AddProcedure(c.Request.Context(), id, faseIndex, in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// PATCH /api/budgets/:id/fase/:faseIndex/procedimientos
func (h *BudgetHandler) ReplaceProcedures(c *gin.Context) {
	id, faseIndex, ok := h.budgetPhaseParams(c)
	if !ok {
		return
	}
	var in struct {
		Procedimientos []services.ProcedureInput `json:"procedimientos"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	detail, err := h.budgets.ReplaceProcedures(c.Request.Context(), id, faseIndex, in.Procedimientos)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// DELETE /api/budgets/:id
func (h *BudgetHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_budget_id", err)
		return
	}

	if err := h.budgets.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Presupuesto eliminado correctamente"})
}

func (h *BudgetHandler) budgetPhaseParams(c *gin.Context) (uuid.UUID, int, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_budget_id", err)
		return uuid.Nil, 0, false
	}
	faseIndex, err := strconv.Atoi(c.Param("faseIndex"))
	if err != nil || faseIndex < 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_fase_index", err)
		return uuid.Nil, 0, false
	}
	return id, faseIndex, true
}
