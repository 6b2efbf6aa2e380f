// Package dataset reads and writes application corpora as CSV and
// generates synthetic ones.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

// Identity column headers. They are carried on records but never modelled.
const (
	ColApplicationID = "application_id"
	ColAppliedAt     = "application_date"
	ColFirstName     = "first_name"
	ColMiddleName    = "middle_name"
	ColLastName      = "last_name"
	ColContactNumber = "contact_number"
	ColEmail         = "email_address"
)

const dateLayout = "2006-01-02"

// ErrMissingID is returned for a row with an empty application_id.
var ErrMissingID = errors.New("row has no application_id")

type column struct {
	name string
	get  func(*types.ApplicationRecord) string
	set  func(*types.ApplicationRecord, string) error
}

func text(field func(*types.ApplicationRecord) *string) (func(*types.ApplicationRecord) string, func(*types.ApplicationRecord, string) error) {
	return func(r *types.ApplicationRecord) string { return *field(r) },
		func(r *types.ApplicationRecord, v string) error {
			*field(r) = v
			return nil
		}
}

func number(field func(*types.ApplicationRecord) **float64) (func(*types.ApplicationRecord) string, func(*types.ApplicationRecord, string) error) {
	return func(r *types.ApplicationRecord) string {
			if p := *field(r); p != nil {
				return strconv.FormatFloat(*p, 'f', -1, 64)
			}
			return ""
		},
		func(r *types.ApplicationRecord, v string) error {
			if v == "" {
				*field(r) = nil
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*field(r) = &f
			return nil
		}
}

func textColumn(name string, field func(*types.ApplicationRecord) *string) column {
	g, s := text(field)
	return column{name: name, get: g, set: s}
}

func numberColumn(name string, field func(*types.ApplicationRecord) **float64) column {
	g, s := number(field)
	return column{name: name, get: g, set: s}
}

// columns is the canonical CSV layout, identity columns first.
var columns = []column{
	textColumn(ColApplicationID, func(r *types.ApplicationRecord) *string { return &r.ID }),
	{
		name: ColAppliedAt,
		get: func(r *types.ApplicationRecord) string {
			if r.AppliedAt.IsZero() {
				return ""
			}
			return r.AppliedAt.Format(dateLayout)
		},
		set: func(r *types.ApplicationRecord, v string) error {
			if v == "" {
				return nil
			}
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				t, err = time.Parse(time.RFC3339, v)
			}
			r.AppliedAt = t
			return err
		},
	},
	textColumn(ColFirstName, func(r *types.ApplicationRecord) *string { return &r.FirstName }),
	textColumn(ColMiddleName, func(r *types.ApplicationRecord) *string { return &r.MiddleName }),
	textColumn(ColLastName, func(r *types.ApplicationRecord) *string { return &r.LastName }),
	textColumn(ColContactNumber, func(r *types.ApplicationRecord) *string { return &r.ContactNumber }),
	textColumn(ColEmail, func(r *types.ApplicationRecord) *string { return &r.Email }),

	textColumn(features.CivilStatus, func(r *types.ApplicationRecord) *string { return &r.CivilStatus }),
	numberColumn(features.Dependents, func(r *types.ApplicationRecord) **float64 { return &r.Dependents }),
	textColumn(features.AddressCity, func(r *types.ApplicationRecord) *string { return &r.AddressCity }),
	textColumn(features.AddressProvince, func(r *types.ApplicationRecord) *string { return &r.AddressProvince }),
	numberColumn(features.YearsOfStay, func(r *types.ApplicationRecord) **float64 { return &r.YearsOfStay }),
	textColumn(features.ResidenceType, func(r *types.ApplicationRecord) *string { return &r.ResidenceType }),
	textColumn(features.EmploymentType, func(r *types.ApplicationRecord) *string { return &r.EmploymentType }),
	numberColumn(features.CreditLimit, func(r *types.ApplicationRecord) **float64 { return &r.CreditLimit }),
	numberColumn(features.GrossMonthlyIncome, func(r *types.ApplicationRecord) **float64 { return &r.GrossMonthlyIncome }),
	textColumn(features.SourceOfFunds, func(r *types.ApplicationRecord) *string { return &r.SourceOfFunds }),
	numberColumn(features.BankAvgMonthlyDeposits, func(r *types.ApplicationRecord) **float64 { return &r.BankAvgMonthlyDeposits }),
	numberColumn(features.BankAvgMonthlyWithdrawals, func(r *types.ApplicationRecord) **float64 { return &r.BankAvgMonthlyWithdrawals }),
	numberColumn(features.BankTransactionFrequency, func(r *types.ApplicationRecord) **float64 { return &r.BankTransactionFrequency }),
	numberColumn(features.BankLoansTaken, func(r *types.ApplicationRecord) **float64 { return &r.BankLoansTaken }),
	numberColumn(features.BankEMIPayment, func(r *types.ApplicationRecord) **float64 { return &r.BankEMIPayment }),
	numberColumn(features.BankSuccessfulLoans, func(r *types.ApplicationRecord) **float64 { return &r.BankSuccessfulLoans }),
	numberColumn(features.PrepaidLoadFrequency, func(r *types.ApplicationRecord) **float64 { return &r.PrepaidLoadFrequency }),
	textColumn(features.PostpaidPlanHistory, func(r *types.ApplicationRecord) *string { return &r.PostpaidPlanHistory }),
	textColumn(features.DataUsagePattern, func(r *types.ApplicationRecord) *string { return &r.DataUsagePattern }),
	numberColumn(features.WalletAvgMonthlyDeposits, func(r *types.ApplicationRecord) **float64 { return &r.WalletAvgMonthlyDeposits }),
	numberColumn(features.WalletAvgMonthlyWithdrawals, func(r *types.ApplicationRecord) **float64 { return &r.WalletAvgMonthlyWithdrawals }),
	numberColumn(features.WalletTransactionFrequency, func(r *types.ApplicationRecord) **float64 { return &r.WalletTransactionFrequency }),
	textColumn(features.LoanPurpose, func(r *types.ApplicationRecord) *string { return &r.LoanPurpose }),
	numberColumn(features.LoanAmountRequested, func(r *types.ApplicationRecord) **float64 { return &r.LoanAmountRequested }),
	numberColumn(features.LoanTenorMonths, func(r *types.ApplicationRecord) **float64 { return &r.LoanTenorMonths }),
}

// legacyPrefixes rewrite the provider-branded headers of older exports.
var legacyPrefixes = [][2]string{
	{"bpi_", "bank_"},
	{"gcash_", "wallet_"},
}

var legacyHeaders = map[string]string{
	"loan_amount_requested_php": features.LoanAmountRequested,
	"data_usage_pattern":        features.DataUsagePattern,
	"email":                     ColEmail,
	"date":                      ColAppliedAt,
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c.name] = i
	}
	return idx
}()

// Canonical maps a possibly legacy header to its canonical name.
func Canonical(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	if alias, ok := legacyHeaders[h]; ok {
		return alias
	}
	for _, p := range legacyPrefixes {
		if strings.HasPrefix(h, p[0]) {
			return p[1] + strings.TrimPrefix(h, p[0])
		}
	}
	return h
}

// Header returns the canonical CSV header row.
func Header() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.name
	}
	return out
}

// Read parses a corpus. Unknown columns are ignored, empty cells are
// missing values, and every row needs an application_id.
func Read(r io.Reader) ([]types.ApplicationRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read header: %w", err)
	}

	// position in row -> column, -1 for ignored headers
	mapping := make([]int, len(header))
	hasID := false
	for i, h := range header {
		mapping[i] = -1
		if j, ok := columnIndex[Canonical(h)]; ok {
			mapping[i] = j
			hasID = hasID || columns[j].name == ColApplicationID
		}
	}
	if !hasID {
		return nil, fmt.Errorf("missing required header %q", ColApplicationID)
	}

	var records []types.ApplicationRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var rec types.ApplicationRecord
		for i, cell := range row {
			if i >= len(mapping) || mapping[i] < 0 {
				continue
			}
			col := columns[mapping[i]]
			if err := col.set(&rec, strings.TrimSpace(cell)); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, col.name, err)
			}
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("line %d: %w", line, ErrMissingID)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadFile parses the corpus at path.
func ReadFile(path string) ([]types.ApplicationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Write emits records with the canonical header.
func Write(w io.Writer, records []types.ApplicationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for i := range records {
		for j, c := range columns {
			row[j] = c.get(&records[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes records to path, replacing any existing file.
func WriteFile(path string, records []types.ApplicationRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create corpus: %w", err)
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
