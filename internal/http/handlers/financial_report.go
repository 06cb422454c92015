package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sgco/clinic-backend/internal/http/response"
	"github.com/sgco/clinic-backend/internal/platform/logger"
	"github.com/sgco/clinic-backend/internal/services"
)

type FinancialReportHandler struct {
	log     *logger.Logger
	reports services.ReportService
}

func NewFinancialReportHandler(log *logger.Logger, reports services.ReportService) *FinancialReportHandler {
	return &FinancialReportHandler{
		log:     log.With("handler", "FinancialReportHandler"),
		reports: reports,
	}
}

// POST /api/financial-reports
func (h *FinancialReportHandler) Record(c *gin.Context) {
	var in services.RecordTransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	row, err := h.reports.Record(c.Request.Context(), in)
	if err != nil {
		h.log.Error("Record transaction failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, row)
}

// GET /api/financial-reports
func (h *FinancialReportHandler) ListAll(c *gin.Context) {
	rows, err := h.reports.ListAll(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, rows)
}

// GET /api/financial-reports/mensual?mes=&año=
func (h *FinancialReportHandler) Monthly(c *gin.Context) {
	mes, err := strconv.Atoi(c.Query("mes"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_mes", err)
		return
	}
	anio, ok := h.yearParam(c)
	if !ok {
		return
	}

	report, err := h.reports.Monthly(c.Request.Context(), mes, anio)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, report)
}

// GET /api/financial-reports/anual?año=
func (h *FinancialReportHandler) Annual(c *gin.Context) {
	anio, ok := h.yearParam(c)
	if !ok {
		return
	}

	report, err := h.reports.Annual(c.Request.Context(), anio)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, report)
}

// GET /api/financial-reports/rango?fechaInicio=&fechaFin=
func (h *FinancialReportHandler) Range(c *gin.Context) {
	desde, err := parseDate(c.Query("fechaInicio"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_fecha_inicio", err)
		return
	}
	hasta, err := parseDate(c.Query("fechaFin"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_fecha_fin", err)
		return
	}

	report, err := h.reports.Range(c.Request.Context(), desde, hasta)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, report)
}

// DELETE /api/financial-reports/:id
func (h *FinancialReportHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_transaction_id", err)
		return
	}

	if err := h.reports.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Transacción eliminada correctamente"})
}

// yearParam accepts both "año" and the ASCII fallback "anio".
func (h *FinancialReportHandler) yearParam(c *gin.Context) (int, bool) {
	raw := c.Query("año")
	if raw == "" {
		raw = c.Query("anio")
	}
	anio, err := strconv.Atoi(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_anio", err)
		return 0, false
	}
	return anio, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
