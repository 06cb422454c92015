package repos

import (
	"github.com/sgco/clinic-backend/internal/data/repos/billing"
	"github.com/sgco/clinic-backend/internal/data/repos/clinic"
)

type BudgetRepo = billing.BudgetRepo
type LedgerRepo = billing.LedgerRepo
type TransactionLogRepo = billing.TransactionLogRepo
type PaymentEventRepo = billing.PaymentEventRepo

type PatientRepo = clinic.PatientRepo
type TreatmentPlanRepo = clinic.TreatmentPlanRepo

var NewBudgetRepo = billing.NewBudgetRepo
var NewLedgerRepo = billing.NewLedgerRepo
var NewTransactionLogRepo = billing.NewTransactionLogRepo
var NewPaymentEventRepo = billing.NewPaymentEventRepo

var NewPatientRepo = clinic.NewPatientRepo
var NewTreatmentPlanRepo = clinic.NewTreatmentPlanRepo
