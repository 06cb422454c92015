package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sgco/clinic-backend/internal/domain/billing"
	"github.com/sgco/clinic-backend/internal/platform/logger"
	"github.com/sgco/clinic-backend/internal/services"
)

type fakeReportService struct {
	monthlyMes  int
	monthlyAnio int
	rangeDesde  time.Time
	rangeHasta  time.Time
}

func (f *fakeReportService) Record(ctx context.Context, in services.RecordTransactionInput) (*billing.TransactionEntry, error) {
	return &billing.TransactionEntry{ID: uuid.New()}, nil
}

func (f *fakeReportService) ListAll(ctx context.Context) ([]*billing.TransactionEntry, error) {
	return nil, nil
}

func (f *fakeReportService) Monthly(ctx context.Context, mes, anio int) (*services.MonthlyReport, error) {
	f.monthlyMes, f.monthlyAnio = mes, anio
	return &services.MonthlyReport{Mes: mes, Anio: anio}, nil
}

func (f *fakeReportService) Annual(ctx context.Context, anio int) (*services.AnnualReport, error) {
	return &services.AnnualReport{Anio: anio}, nil
}

func (f *fakeReportService) Range(ctx context.Context, desde, hasta time.Time) (*services.RangeReport, error) {
	f.rangeDesde, f.rangeHasta = desde, hasta
	return &services.RangeReport{FechaInicio: desde, FechaFin: hasta}, nil
}

func (f *fakeReportService) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func reportRouter(t *testing.T, svc services.ReportService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	h := NewFinancialReportHandler(log, svc)

	r := gin.New()
	r.GET("/api/financial-reports/mensual", h.Monthly)
	r.GET("/api/financial-reports/rango", h.Range)
	return r
}

func TestMonthlyHandlerAcceptsBothYearParams(t *testing.T) {
	fake := &fakeReportService{}
	r := reportRouter(t, fake)

	// Spelled "año", URL-encoded.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/financial-reports/mensual?mes=3&"+url.QueryEscape("año")+"=2026", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("año param status: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	if fake.monthlyMes != 3 || fake.monthlyAnio != 2026 {
		t.Fatalf("monthly params: mes=%d anio=%d", fake.monthlyMes, fake.monthlyAnio)
	}

	// ASCII fallback "anio".
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/financial-reports/mensual?mes=7&anio=2025", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("anio param status: want=200 got=%d", w.Code)
	}
	if fake.monthlyMes != 7 || fake.monthlyAnio != 2025 {
		t.Fatalf("monthly params: mes=%d anio=%d", fake.monthlyMes, fake.monthlyAnio)
	}

	// Missing year.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/financial-reports/mensual?mes=7", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing year status: want=400 got=%d", w.Code)
	}
}

func TestRangeHandlerParsesDates(t *testing.T) {
	fake := &fakeReportService{}
	r := reportRouter(t, fake)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/financial-reports/rango?fechaInicio=2026-01-01&fechaFin=2026-03-31", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	if fake.rangeDesde.Format("2006-01-02") != "2026-01-01" {
		t.Fatalf("desde: got=%v", fake.rangeDesde)
	}
	if fake.rangeHasta.Format("2006-01-02") != "2026-03-31" {
		t.Fatalf("hasta: got=%v", fake.rangeHasta)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet,
		"/api/financial-reports/rango?fechaInicio=ayer&fechaFin=2026-03-31", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status: want=400 got=%d", w.Code)
	}
}
