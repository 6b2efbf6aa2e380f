package types

import "time"

// ApplicationRecord is one loan application as handed over by the ingestion
// layer. Pointer fields are optional: nil means no value was recorded, which
// is not the same as zero. Empty categorical strings mean the same thing.
type ApplicationRecord struct {
	ID        string    `json:"application_id" binding:"required"`
	AppliedAt time.Time `json:"application_date"`

	// Contact and identity fields. Never model inputs.
	FirstName     string `json:"first_name"`
	MiddleName    string `json:"middle_name,omitempty"`
	LastName      string `json:"last_name"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email_address"`

	CivilStatus     string   `json:"civil_status"`
	Dependents      *float64 `json:"dependents"`
	AddressCity     string   `json:"address_city"`
	AddressProvince string   `json:"address_province"`
	YearsOfStay     *float64 `json:"years_of_stay"`
	ResidenceType   string   `json:"residence_type"`
	EmploymentType  string   `json:"employment_type"`

	CreditLimit        *float64 `json:"credit_limit"`
	GrossMonthlyIncome *float64 `json:"gross_monthly_income"`
	SourceOfFunds      string   `json:"source_of_funds"`

	BankAvgMonthlyDeposits    *float64 `json:"bank_avg_monthly_deposits"`
	BankAvgMonthlyWithdrawals *float64 `json:"bank_avg_monthly_withdrawals"`
	BankTransactionFrequency  *float64 `json:"bank_frequency_of_transactions"`
	BankLoansTaken            *float64 `json:"bank_loans_taken"`
	BankEMIPayment            *float64 `json:"bank_emi_payment"`
	BankSuccessfulLoans       *float64 `json:"bank_successful_loans"`

	PrepaidLoadFrequency *float64 `json:"prepaid_load_frequency"`
	PostpaidPlanHistory  string   `json:"postpaid_plan_history"`
	DataUsagePattern     string   `json:"data_usage_patterns"`

	WalletAvgMonthlyDeposits    *float64 `json:"wallet_avg_monthly_deposits"`
	WalletAvgMonthlyWithdrawals *float64 `json:"wallet_avg_monthly_withdrawals"`
	WalletTransactionFrequency  *float64 `json:"wallet_frequency_of_transactions"`

	LoanPurpose         string   `json:"loan_purpose"`
	LoanAmountRequested *float64 `json:"loan_amount_requested"`
	LoanTenorMonths     *float64 `json:"loan_tenor_months"`
}

// Float returns a pointer to v, for building records in code.
func Float(v float64) *float64 {
	return &v
}

// AnalyzeRequest is the body of the single-application analysis endpoint
type AnalyzeRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
}

// RetrainRequest carries a training corpus inline as JSON
type RetrainRequest struct {
	Records []ApplicationRecord `json:"records" binding:"required"`
}

// CategorizeRequest carries a batch of applications to score without
// explanations
type CategorizeRequest struct {
	Records []ApplicationRecord `json:"records" binding:"required"`
}
