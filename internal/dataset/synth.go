package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

var (
	civilStatuses   = []string{"Single", "Married", "Separated", "Widowed"}
	residenceTypes  = []string{"Owned", "Rented", "Living with Relatives", "Others"}
	employmentTypes = []string{"Salaried", "Self-Employed", "Freelancer", "Unemployed"}
	fundSources     = []string{"Salary", "Business Income", "Remittances", "Investments"}
	loanPurposes    = []string{"Business Expansion", "Education", "Home Renovation", "Medical", "Personal"}
	loanTenors      = []float64{4, 6, 8, 12}
	postpaidPlans   = []string{"None", "Basic Plan", "Premium Plan"}
	dataUsages      = []string{"Low", "Medium", "High"}

	firstNames = []string{"Juan", "Maria", "Jose", "Ana", "Mark", "Kristine", "Paolo", "Angelica", "Ramon", "Liza", "Miguel", "Carmela", "Rafael", "Patricia", "Andres", "Joy"}
	lastNames  = []string{"Santos", "Reyes", "Cruz", "Bautista", "Garcia", "Mendoza", "Torres", "Villanueva", "Ramos", "Aquino", "Castillo", "Flores", "Del Rosario", "Gonzales"}
	places     = [][2]string{
		{"Quezon City", "Metro Manila"}, {"Makati", "Metro Manila"}, {"Pasig", "Metro Manila"},
		{"Cebu City", "Cebu"}, {"Mandaue", "Cebu"}, {"Davao City", "Davao del Sur"},
		{"Iloilo City", "Iloilo"}, {"Bacolod", "Negros Occidental"}, {"Baguio", "Benguet"},
		{"Cagayan de Oro", "Misamis Oriental"}, {"Antipolo", "Rizal"}, {"Calamba", "Laguna"},
	}

	synthStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	synthEnd   = time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
)

// Synthesize generates n applications. The same seed always yields the
// same corpus. Card, bank, telecom and wallet blocks are each present for
// about half the applicants and missing otherwise.
func Synthesize(n int, seed int64) []types.ApplicationRecord {
	rng := rand.New(rand.NewSource(seed))
	days := int(synthEnd.Sub(synthStart).Hours()/24) + 1
	used := make(map[string]bool, n)

	out := make([]types.ApplicationRecord, 0, n)
	for len(out) < n {
		applied := synthStart.AddDate(0, 0, rng.Intn(days))
		id := fmt.Sprintf("APP-%s-%04d", applied.Format("20060102"), 1000+rng.Intn(9000))
		if used[id] {
			continue
		}
		used[id] = true

		first, last := oneOf(rng, firstNames), oneOf(rng, lastNames)
		place := places[rng.Intn(len(places))]
		r := types.ApplicationRecord{
			ID:              id,
			AppliedAt:       applied,
			FirstName:       first,
			MiddleName:      oneOf(rng, firstNames)[:1] + ".",
			LastName:        last,
			ContactNumber:   contactNumber(rng),
			Email:           strings.ToLower(strings.ReplaceAll(first+"."+last, " ", "")) + "@example.ph",
			CivilStatus:     oneOf(rng, civilStatuses),
			Dependents:      types.Float(float64(rng.Intn(6))),
			AddressCity:     place[0],
			AddressProvince: place[1],
			YearsOfStay:     types.Float(float64(rng.Intn(31))),
			ResidenceType:   oneOf(rng, residenceTypes),
			EmploymentType:  oneOf(rng, employmentTypes),
		}

		if rng.Intn(2) == 0 {
			r.CreditLimit = types.Float(float64(5000 + rng.Intn(45001)))
		}
		r.GrossMonthlyIncome = types.Float(uniform(rng, 10000, 200000))
		r.SourceOfFunds = oneOf(rng, fundSources)

		if rng.Intn(2) == 0 {
			taken := poisson(rng, 2)
			r.BankLoansTaken = types.Float(float64(taken))
			r.BankEMIPayment = types.Float(uniform(rng, 0, 50000))
			r.BankAvgMonthlyDeposits = types.Float(uniform(rng, 0, 50000))
			r.BankAvgMonthlyWithdrawals = types.Float(uniform(rng, 0, 50000))
			r.BankTransactionFrequency = types.Float(float64(rng.Intn(51)))
			r.BankSuccessfulLoans = types.Float(float64(rng.Intn(taken + 1)))
		}

		if rng.Intn(2) == 0 {
			r.PrepaidLoadFrequency = types.Float(float64(rng.Intn(31)))
			r.PostpaidPlanHistory = oneOf(rng, postpaidPlans)
			r.DataUsagePattern = oneOf(rng, dataUsages)
		}

		if rng.Intn(2) == 0 {
			r.WalletAvgMonthlyDeposits = types.Float(uniform(rng, 0, 30000))
			r.WalletAvgMonthlyWithdrawals = types.Float(uniform(rng, 0, 30000))
			r.WalletTransactionFrequency = types.Float(float64(rng.Intn(51)))
		}

		r.LoanPurpose = oneOf(rng, loanPurposes)
		r.LoanAmountRequested = types.Float(uniform(rng, 5000, 1000000))
		r.LoanTenorMonths = types.Float(loanTenors[rng.Intn(len(loanTenors))])

		out = append(out, r)
	}
	return out
}

func oneOf(rng *rand.Rand, xs []string) string {
	return xs[rng.Intn(len(xs))]
}

// uniform draws from [lo, hi] rounded to centavos.
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return math.Round((lo+rng.Float64()*(hi-lo))*100) / 100
}

// poisson uses Knuth's multiplication method, fine for small lambda.
func poisson(rng *rand.Rand, lambda float64) int {
	limit := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

func contactNumber(rng *rand.Rand) string {
	var b strings.Builder
	b.WriteString("09")
	for i := 0; i < 9; i++ {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	return b.String()
}
