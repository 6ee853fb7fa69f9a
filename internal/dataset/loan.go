package dataset

import (
	"fmt"
	"math/rand"
	"time"

	"mlstudio/internal/common"
)

var (
	homeOwnershipOptions = []string{"RENT", "MORTGAGE", "OWN"}
	loanPurposeOptions   = []string{
		"DEBT_CONSOLIDATION",
		"CREDIT_CARD",
		"HOME_IMPROVEMENT",
		"MAJOR_PURCHASE",
		"MEDICAL",
		"EDUCATION",
	}
	loanTermOptions   = []float64{36, 60, 120}
	hasDefaultOptions = []string{"yes", "no"}
)

// LoanFeatures returns the feature list of the loan approval dataset.
func LoanFeatures() []Feature {
	return []Feature{
		{Name: "age", Type: Numeric, Importance: 0.15},
		{Name: "income", Type: Numeric, Importance: 0.25},
		{Name: "loan_amount", Type: Numeric, Importance: 0.2},
		{Name: "loan_term", Type: Numeric, Importance: 0.1},
		{Name: "credit_score", Type: Numeric, Importance: 0.3},
		{Name: "employment_length", Type: Numeric, Importance: 0.12},
		{Name: "home_ownership", Type: Categorical, Importance: 0.08},
		{Name: "loan_purpose", Type: Categorical, Importance: 0.05},
		{Name: "debt_to_income", Type: Numeric, Importance: 0.18},
		{Name: "has_default", Type: Categorical, Importance: 0.07},
	}
}

// GenerateLoanData builds n synthetic loan applications. The same seed always
// yields the same rows.
func GenerateLoanData(n int, seed int64) []Row {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]Row, 0, n)

	for i := 0; i < n; i++ {
		age := float64(rng.Intn(40) + 25)
		income := float64(rng.Intn(150000) + 30000)
		loanAmount := float64(rng.Intn(50000) + 5000)
		loanTerm := loanTermOptions[rng.Intn(len(loanTermOptions))]
		creditScore := float64(rng.Intn(350) + 450)
		employmentLength := float64(rng.Intn(15) + 1)
		homeOwnership := homeOwnershipOptions[rng.Intn(len(homeOwnershipOptions))]
		loanPurpose := loanPurposeOptions[rng.Intn(len(loanPurposeOptions))]
		debtToIncome := rng.Float64()*0.5 + 0.1
		hasDefault := hasDefaultOptions[rng.Intn(len(hasDefaultOptions))]

		highRisk := creditScore < 600 ||
			debtToIncome > 0.45 ||
			hasDefault == "yes" ||
			(loanAmount > 40000 && income < 80000) ||
			(age < 30 && loanAmount > 30000 && employmentLength < 5)

		// 30% approval for high-risk applicants, 80% otherwise
		var approved bool
		if highRisk {
			approved = rng.Float64() > 0.7
		} else {
			approved = rng.Float64() > 0.2
		}

		rows = append(rows, Row{
			"id":                fmt.Sprintf("loan-%d", i+1),
			"age":               age,
			"income":            income,
			"loan_amount":       loanAmount,
			"loan_term":         loanTerm,
			"credit_score":      creditScore,
			"employment_length": employmentLength,
			"home_ownership":    homeOwnership,
			"loan_purpose":      loanPurpose,
			"debt_to_income":    fmt.Sprintf("%.2f", debtToIncome),
			"has_default":       hasDefault,
			"approved":          approved,
		})
	}

	return rows
}

// DefaultLoanDataset returns the demo loan approval dataset with n rows.
func DefaultLoanDataset(n int, seed int64) *Dataset {
	features := LoanFeatures()
	return &Dataset{
		ID:           common.DefaultDatasetID,
		Name:         common.DefaultDatasetName,
		Description:  common.DefaultDatasetDescription,
		CreatedAt:    time.Now().UTC(),
		RowCount:     n,
		ColumnCount:  len(features),
		Features:     features,
		Rows:         GenerateLoanData(n, seed),
		TargetColumn: common.DefaultTargetColumn,
	}
}
