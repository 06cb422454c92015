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

type PaymentHandler struct {
	log      *logger.Logger
	payments services.PaymentService
}

func NewPaymentHandler(log *logger.Logger, payments services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		log:      log.With("handler", "PaymentHandler"),
		payments: payments,
	}
}

// POST /api/payments/budget/:budgetId/fase/:faseIndex/pago
func (h *PaymentHandler) RegisterPayment(c *gin.Context) {
	budgetID, faseIndex, ok := h.phaseParams(c)
	if !ok {
		return
	}

	var in services.RegisterPaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	in.BudgetID = budgetID
	in.FaseIndex = faseIndex
	in.IdempotencyKey = c.GetHeader("Idempotency-Key")

	ledger, err := h.payments.RegisterPayment(c.Request.Context(), in)
	if err != nil {
		h.log.Error("Register payment failed", "error", err, "budget_id", budgetID, "fase_index", faseIndex)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, ledger)
}

// PATCH /api/payments/budget/:budgetId/fase/:faseIndex/pago/:pagoId/anular
func (h *PaymentHandler) VoidPayment(c *gin.Context) {
	budgetID, faseIndex, ok := h.phaseParams(c)
	if !ok {
		return
	}
	pagoID, err := uuid.Parse(c.Param("pagoId"))
	if err != nil || pagoID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pago_id", err)
		return
	}

	var in services.VoidPaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	in.BudgetID = budgetID
	in.FaseIndex = faseIndex
	in.PagoID = pagoID

	ledger, err := h.payments.VoidPayment(c.Request.Context(), in)
	if err != nil {
		h.log.Error("Void payment failed", "error", err, "budget_id", budgetID, "pago_id", pagoID)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, ledger)
}

// GET /api/payments/budget/:budgetId
func (h *PaymentHandler) ListLedgers(c *gin.Context) {
	budgetID, ok := h.budgetParam(c)
	if !ok {
		return
	}

	ledgers, err := h.payments.ListLedgers(c.Request.Context(), budgetID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, ledgers)
}

// GET /api/payments/budget/:budgetId/summary
func (h *PaymentHandler) Summary(c *gin.Context) {
	budgetID, ok := h.budgetParam(c)
	if !ok {
		return
	}

	summary, err := h.payments.Summary(c.Request.Context(), budgetID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, summary)
}

// POST /api/payments/budget/:budgetId/reconciliar
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	budgetID, ok := h.budgetParam(c)
	if !ok {
		return
	}

	result, err := h.payments.ReconcileBudget(c.Request.Context(), budgetID)
	if err != nil {
		h.log.Error("Reconcile budget failed", "error", err, "budget_id", budgetID)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// DELETE /api/payments/budget/:budgetId/pagos
func (h *PaymentHandler) DeleteAllForBudget(c *gin.Context) {
	budgetID, ok := h.budgetParam(c)
	if !ok {
		return
	}

	if err := h.payments.DeleteAllForBudget(c.Request.Context(), budgetID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Pagos del presupuesto eliminados correctamente"})
}

// DELETE /api/payments/deleteAll
func (h *PaymentHandler) DeleteAllSystem(c *gin.Context) {
	if err := h.payments.DeleteAllSystem(c.Request.Context()); err != nil {
		h.log.Error("System-wide payment wipe failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Todos los registros de pago fueron eliminados"})
}

func (h *PaymentHandler) budgetParam(c *gin.Context) (uuid.UUID, bool) {
	budgetID, err := uuid.Parse(c.Param("budgetId"))
	if err != nil || budgetID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_budget_id", err)
		return uuid.Nil, false
	}
	return budgetID, true
}

func (h *PaymentHandler) phaseParams(c *gin.Context) (uuid.UUID, int, bool) {
	budgetID, ok := h.budgetParam(c)
	if !ok {
		return uuid.Nil, 0, false
	}
	faseIndex, err := strconv.Atoi(c.Param("faseIndex"))
	if err != nil || faseIndex < 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_fase_index", err)
		return uuid.Nil, 0, false
	}
	return budgetID, faseIndex, true
}
