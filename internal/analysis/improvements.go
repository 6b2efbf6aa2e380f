package analysis

import "github.com/ZanzyTHEbar/credit-risk-lens/internal/fivec"

// weaknessCutoff ignores 5-C scores that barely move the prediction.
const weaknessCutoff = 0.01

const maintainHabits = "Your application shows a strong financial profile. Continue maintaining good financial habits."

// Improvements applies the headline rules: annual debt-to-income above 0.4,
// fewer than two successful loans, and a credit limit under half the
// requested amount each produce one suggestion.
func Improvements(h Headline) []string {
	var out []string

	dti := 1.0
	if h.Income > 0 {
		dti = h.LoanAmount / (h.Income * 12)
	}
	if dti > 0.4 {
		out = append(out, "Capacity: high debt-to-income ratio detected. Consider reducing the loan amount or adding income sources.")
	}
	if h.SuccessfulLoans < 2 {
		out = append(out, "Character: building a stronger repayment history will improve your credit profile.")
	}
	if h.CreditLimit < 0.5*h.LoanAmount {
		out = append(out, "Capital: increasing your credit limit through consistent banking relationships may help.")
	}
	if len(out) == 0 {
		out = append(out, maintainHabits)
	}
	return out
}

var weaknessAdvice = map[fivec.Category]string{
	fivec.Character:  "Character: paying existing bills and loans on time, and a longer record of stable employment and residence, show willingness to repay.",
	fivec.Capacity:   "Capacity: reducing existing monthly debt payments or raising average monthly deposits shows a steadier ability to repay.",
	fivec.Capital:    "Capital: more savings or liquid assets give lenders a safety net; managing other credit lines well can raise your limit over time.",
	fivec.Collateral: "Collateral: the requested amount or tenor looks high against your profile. A smaller loan improves your chances.",
	fivec.Conditions: "Conditions: the loan purpose or wider economic factors weigh on this decision. A lower-risk purpose can help.",
}

// WeaknessAdvice suggests one action per C that holds the application in
// its category. Scores explain the predicted category, so outside the best
// category a positive score pulls toward worse risk. Applications already
// in the best category get none.
func WeaknessAdvice(score fivec.Score, level int) []string {
	if level == 0 {
		return nil
	}
	var out []string
	for _, c := range fivec.Categories() {
		if score.Scores[c] > weaknessCutoff {
			out = append(out, weaknessAdvice[c])
		}
	}
	return out
}
