package fivec

import (
	"sort"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
)

// Category is one of the five Cs of credit.
type Category string

const (
	Character  Category = "Character"
	Capacity   Category = "Capacity"
	Capital    Category = "Capital"
	Collateral Category = "Collateral"
	Conditions Category = "Conditions"
)

// Categories lists the five Cs in their conventional order.
func Categories() []Category {
	return []Category{Character, Capacity, Capital, Collateral, Conditions}
}

// Taxonomy assigns features to a C. A feature not in the table is unmapped.
type Taxonomy map[string]Category

// DefaultTaxonomy is the curated assignment. bank_loans_taken is left out:
// it already drives the risk label and reads as both Character and Capital.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		features.CivilStatus:         Character,
		features.Dependents:          Character,
		features.YearsOfStay:         Character,
		features.ResidenceType:       Character,
		features.EmploymentType:      Character,
		features.BankSuccessfulLoans: Character,
		features.PostpaidPlanHistory: Character,

		features.GrossMonthlyIncome:          Capacity,
		features.SourceOfFunds:               Capacity,
		features.BankAvgMonthlyDeposits:      Capacity,
		features.BankAvgMonthlyWithdrawals:   Capacity,
		features.BankTransactionFrequency:    Capacity,
		features.WalletAvgMonthlyDeposits:    Capacity,
		features.WalletAvgMonthlyWithdrawals: Capacity,
		features.WalletTransactionFrequency:  Capacity,

		features.CreditLimit:    Capital,
		features.BankEMIPayment: Capital,

		features.LoanAmountRequested: Collateral,
		features.LoanTenorMonths:     Collateral,

		features.AddressCity:          Conditions,
		features.AddressProvince:      Conditions,
		features.LoanPurpose:          Conditions,
		features.DataUsagePattern:     Conditions,
		features.PrepaidLoadFrequency: Conditions,
	}
}

// Features returns the features mapped to c, sorted.
func (t Taxonomy) Features(c Category) []string {
	var out []string
	for name, cat := range t {
		if cat == c {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Unmapped returns the names that have no category, in input order.
func (t Taxonomy) Unmapped(names []string) []string {
	var out []string
	for _, name := range names {
		if _, ok := t[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Score is the per-C sum of attribution weights. Weight on unmapped
// features is reported, not folded into any C.
type Score struct {
	Scores         map[Category]float64 `json:"scores"`
	Unmapped       []string             `json:"unmapped,omitempty"`
	UnmappedWeight float64              `json:"unmapped_weight"`
}

// Aggregate sums weights per category. All five categories are present in
// the result, zero when nothing maps to them.
func Aggregate(weights map[string]float64, t Taxonomy) Score {
	s := Score{Scores: make(map[Category]float64, 5)}
	for _, c := range Categories() {
		s.Scores[c] = 0
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w := weights[name]
		if c, ok := t[name]; ok {
			s.Scores[c] += w
			continue
		}
		s.Unmapped = append(s.Unmapped, name)
		s.UnmappedWeight += w
	}
	return s
}

// Strongest returns the category with the largest positive score and the
// one with the most negative, ties going to the conventional order.
func (s Score) Strongest() (best, worst Category) {
	best, worst = Character, Character
	for _, c := range Categories() {
		if s.Scores[c] > s.Scores[best] {
			best = c
		}
		if s.Scores[c] < s.Scores[worst] {
			worst = c
		}
	}
	return best, worst
}
