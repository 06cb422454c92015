package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/sgco/clinic-backend/internal/http/handlers"
	httpMW "github.com/sgco/clinic-backend/internal/http/middleware"
	"github.com/sgco/clinic-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware

	BudgetHandler          *httpH.BudgetHandler
	PaymentHandler         *httpH.PaymentHandler
	FinancialReportHandler *httpH.FinancialReportHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Budgets
		if cfg.BudgetHandler != nil {
			api.POST("/budgets", cfg.BudgetHandler.Create)
			api.POST("/budgets/from-treatment/:planId", cfg.BudgetHandler.CreateFromTreatmentPlan)
			api.GET("/budgets", cfg.BudgetHandler.List)
			api.GET("/budgets/:id", cfg.BudgetHandler.Get)
			api.GET("/budgets/paciente/:pacienteId", cfg.BudgetHandler.ListByPatient)
			api.GET("/budgets/treatment/:planId", cfg.BudgetHandler.GetByTreatmentPlan)
			api.PUT("/budgets/:id", cfg.BudgetHandler.Update)
			api.POST("/budgets/:id/fase/:faseIndex/procedimiento", cfg.BudgetHandler.AddProcedure)
			api.PATCH("/budgets/:id/fase/:faseIndex/procedimientos", cfg.BudgetHandler.ReplaceProcedures)
			api.DELETE("/budgets/:id", cfg.BudgetHandler.Delete)
		}

		// Payments
		if cfg.PaymentHandler != nil {
			api.POST("/payments/budget/:budgetId/fase/:faseIndex/pago", cfg.PaymentHandler.RegisterPayment)
			api.PATCH("/payments/budget/:budgetId/fase/:faseIndex/pago/:pagoId/anular", cfg.PaymentHandler.VoidPayment)
			api.GET("/payments/budget/:budgetId", cfg.PaymentHandler.ListLedgers)
			api.GET("/payments/budget/:budgetId/summary", cfg.PaymentHandler.Summary)
			api.POST("/payments/budget/:budgetId/reconciliar", cfg.PaymentHandler.Reconcile)

			// Destructive maintenance, admin only.
			admin := api.Group("/")
			if cfg.AuthMiddleware != nil {
				admin.Use(cfg.AuthMiddleware.RequireRole("admin"))
			}
			admin.DELETE("/payments/budget/:budgetId/pagos", cfg.PaymentHandler.DeleteAllForBudget)
			admin.DELETE("/payments/deleteAll", cfg.PaymentHandler.DeleteAllSystem)
		}

		// Financial reports
		if cfg.FinancialReportHandler != nil {
			api.POST("/financial-reports", cfg.FinancialReportHandler.Record)
			api.GET("/financial-reports", cfg.FinancialReportHandler.ListAll)
			api.GET("/financial-reports/mensual", cfg.FinancialReportHandler.Monthly)
			api.GET("/financial-reports/anual", cfg.FinancialReportHandler.Annual)
			api.GET("/financial-reports/rango", cfg.FinancialReportHandler.Range)
			api.DELETE("/financial-reports/:id", cfg.FinancialReportHandler.Delete)
		}
	}

	return r
}
