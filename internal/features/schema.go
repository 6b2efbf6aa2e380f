package features

import "github.com/ZanzyTHEbar/credit-risk-lens/internal/types"

// Kind tells the encoder how to turn a field into a number.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Canonical model feature names. They double as CSV headers and keys of the
// 5-C taxonomy.
const (
	CivilStatus                 = "civil_status"
	Dependents                  = "dependents"
	AddressCity                 = "address_city"
	AddressProvince             = "address_province"
	YearsOfStay                 = "years_of_stay"
	ResidenceType               = "residence_type"
	EmploymentType              = "employment_type"
	CreditLimit                 = "credit_limit"
	GrossMonthlyIncome          = "gross_monthly_income"
	SourceOfFunds               = "source_of_funds"
	BankAvgMonthlyDeposits      = "bank_avg_monthly_deposits"
	BankAvgMonthlyWithdrawals   = "bank_avg_monthly_withdrawals"
	BankTransactionFrequency    = "bank_frequency_of_transactions"
	BankLoansTaken              = "bank_loans_taken"
	BankEMIPayment              = "bank_emi_payment"
	BankSuccessfulLoans         = "bank_successful_loans"
	PrepaidLoadFrequency        = "prepaid_load_frequency"
	PostpaidPlanHistory         = "postpaid_plan_history"
	DataUsagePattern            = "data_usage_patterns"
	WalletAvgMonthlyDeposits    = "wallet_avg_monthly_deposits"
	WalletAvgMonthlyWithdrawals = "wallet_avg_monthly_withdrawals"
	WalletTransactionFrequency  = "wallet_frequency_of_transactions"
	LoanPurpose                 = "loan_purpose"
	LoanAmountRequested         = "loan_amount_requested"
	LoanTenorMonths             = "loan_tenor_months"
)

// Field describes one model input and how to read it off a record.
type Field struct {
	Name string
	Kind Kind

	number   func(*types.ApplicationRecord) *float64
	category func(*types.ApplicationRecord) string
}

// schema is the fixed column order of every encoded matrix.
var schema = []Field{
	{Name: CivilStatus, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.CivilStatus }},
	{Name: Dependents, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.Dependents }},
	{Name: AddressCity, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.AddressCity }},
	{Name: AddressProvince, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.AddressProvince }},
	{Name: YearsOfStay, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.YearsOfStay }},
	{Name: ResidenceType, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.ResidenceType }},
	{Name: EmploymentType, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.EmploymentType }},
	{Name: CreditLimit, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.CreditLimit }},
	{Name: GrossMonthlyIncome, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.GrossMonthlyIncome }},
	{Name: SourceOfFunds, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.SourceOfFunds }},
	{Name: BankAvgMonthlyDeposits, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.BankAvgMonthlyDeposits }},
	{Name: BankAvgMonthlyWithdrawals, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.BankAvgMonthlyWithdrawals }},
	{Name: BankTransactionFrequency, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.BankTransactionFrequency }},
	{Name: BankLoansTaken, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.BankLoansTaken }},
	{Name: BankEMIPayment, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.BankEMIPayment }},
	{Name: BankSuccessfulLoans, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.BankSuccessfulLoans }},
	{Name: PrepaidLoadFrequency, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.PrepaidLoadFrequency }},
	{Name: PostpaidPlanHistory, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.PostpaidPlanHistory }},
	{Name: DataUsagePattern, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.DataUsagePattern }},
	{Name: WalletAvgMonthlyDeposits, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.WalletAvgMonthlyDeposits }},
	{Name: WalletAvgMonthlyWithdrawals, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.WalletAvgMonthlyWithdrawals }},
	{Name: WalletTransactionFrequency, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.WalletTransactionFrequency }},
	{Name: LoanPurpose, Kind: Categorical, category: func(r *types.ApplicationRecord) string { return r.LoanPurpose }},
	{Name: LoanAmountRequested, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.LoanAmountRequested }},
	{Name: LoanTenorMonths, Kind: Numeric, number: func(r *types.ApplicationRecord) *float64 { return r.LoanTenorMonths }},
}

var schemaIndex = func() map[string]int {
	idx := make(map[string]int, len(schema))
	for i, f := range schema {
		idx[f.Name] = i
	}
	return idx
}()

// Names returns the model feature names in column order.
func Names() []string {
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the schema.
func Fields() []Field {
	return append([]Field(nil), schema...)
}

// Index returns the column of a feature.
func Index(name string) (int, bool) {
	i, ok := schemaIndex[name]
	return i, ok
}

// KindOf reports whether a feature is numeric or categorical.
func KindOf(name string) (Kind, bool) {
	i, ok := schemaIndex[name]
	if !ok {
		return Numeric, false
	}
	return schema[i].Kind, true
}

// Count is the width of an encoded row.
func Count() int {
	return len(schema)
}
