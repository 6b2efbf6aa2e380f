package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
)

func TestSynthesize_Deterministic(t *testing.T) {
	a := Synthesize(50, 7)
	b := Synthesize(50, 7)
	c := Synthesize(50, 8)

	require.Len(t, a, 50)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSynthesize_UniqueIDsAndRanges(t *testing.T) {
	records := Synthesize(500, 1)
	ids := make(map[string]bool)
	optional := map[string]int{}

	for _, r := range records {
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true
		assert.Regexp(t, `^APP-2025\d{4}-\d{4}$`, r.ID)

		require.NotNil(t, r.GrossMonthlyIncome)
		assert.GreaterOrEqual(t, *r.GrossMonthlyIncome, 10000.0)
		assert.LessOrEqual(t, *r.GrossMonthlyIncome, 200000.0)
		require.NotNil(t, r.LoanAmountRequested)
		assert.GreaterOrEqual(t, *r.LoanAmountRequested, 5000.0)

		if r.CreditLimit == nil {
			optional["card"]++
		}
		if r.BankLoansTaken == nil {
			optional["bank"]++
			assert.Nil(t, r.BankSuccessfulLoans)
		} else {
			assert.LessOrEqual(t, *r.BankSuccessfulLoans, *r.BankLoansTaken)
		}
		if r.DataUsagePattern == "" {
			optional["telecom"]++
			assert.Nil(t, r.PrepaidLoadFrequency)
		}
		if r.WalletAvgMonthlyDeposits == nil {
			optional["wallet"]++
		}
	}

	for block, missing := range optional {
		assert.InDelta(t, 250, missing, 60, "block %s", block)
	}
}

func TestReadWrite_RoundTripKeepsMissingValues(t *testing.T) {
	records := Synthesize(20, 3)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(records))
	for i := range records {
		assert.Equal(t, records[i].ID, got[i].ID)
		assert.Equal(t, records[i].AppliedAt, got[i].AppliedAt)
		assert.Equal(t, records[i].CreditLimit, got[i].CreditLimit)
		assert.Equal(t, records[i].DataUsagePattern, got[i].DataUsagePattern)
		assert.Equal(t, records[i].BankSuccessfulLoans, got[i].BankSuccessfulLoans)
	}
}

func TestRead_LegacyHeaders(t *testing.T) {
	csv := "application_id,bpi_loans_taken,gcash_avg_monthly_deposits,loan_amount_requested_php,data_usage_patterns,unrelated\n" +
		"APP-1,3,1200.5,50000,High,zzz\n" +
		"APP-2,,,,,\n"

	got, err := Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 3.0, *got[0].BankLoansTaken)
	assert.Equal(t, 1200.5, *got[0].WalletAvgMonthlyDeposits)
	assert.Equal(t, 50000.0, *got[0].LoanAmountRequested)
	assert.Equal(t, "High", got[0].DataUsagePattern)

	assert.Nil(t, got[1].BankLoansTaken)
	assert.Nil(t, got[1].LoanAmountRequested)
	assert.Empty(t, got[1].DataUsagePattern)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"no id header", "first_name\nJuan\n", "missing required header"},
		{"empty id", "application_id,dependents\n,2\n", "no application_id"},
		{"bad number", "application_id,dependents\nAPP-1,two\n", "column dependents"},
		{"bad date", "application_id,application_date\nAPP-1,yesterday\n", "column application_date"},
		{"empty input", "", "unable to read header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"bpi_emi_payment":                 features.BankEMIPayment,
		"GCASH_FREQUENCY_OF_TRANSACTIONS": features.WalletTransactionFrequency,
		" loan_amount_requested_php ":     features.LoanAmountRequested,
		"credit_limit":                    features.CreditLimit,
		"email":                           ColEmail,
	}
	for in, want := range tests {
		assert.Equal(t, want, Canonical(in), in)
	}
}

func TestHeader_CoversEveryFeature(t *testing.T) {
	header := Header()
	for _, name := range features.Names() {
		assert.Contains(t, header, name)
	}
	assert.Equal(t, ColApplicationID, header[0])
}
