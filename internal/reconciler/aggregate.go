package reconciler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-reconciliation-service/internal/matcher"
	"ledger-reconciliation-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Reconcile runs the engine over the two lists and aggregates the outcome.
// It performs no I/O and never fails.
func Reconcile(bank, sales []*models.TransactionRecord, config *matcher.MatchingConfig) *models.ReconciliationResult {
	outcome := matcher.NewEngine(config).Match(bank, sales)
	return Aggregate(bank, sales, outcome)
}

// Aggregate builds the result value for one engine run. Amount sums are
// rounded to cents and the match rate to one decimal.
func Aggregate(bank, sales []*models.TransactionRecord, outcome *matcher.Outcome) *models.ReconciliationResult {
	return &models.ReconciliationResult{
		ID:             uuid.NewString(),
		MatchedPairs:   outcome.Pairs,
		UnmatchedBank:  outcome.UnmatchedBank,
		UnmatchedSales: outcome.UnmatchedSales,
		Summary:        Summarize(bank, sales, outcome),
		CreatedAt:      time.Now().UTC(),
	}
}

// Summarize computes the counts, sums and match rate of an outcome.
func Summarize(bank, sales []*models.TransactionRecord, outcome *matcher.Outcome) models.Summary {
	summary := models.Summary{
		TotalBank:            len(bank),
		TotalSales:           len(sales),
		TotalBankAmount:      sum(bank),
		TotalSalesAmount:     sum(sales),
		UnmatchedBankAmount:  sum(outcome.UnmatchedBank),
		UnmatchedSalesAmount: sum(outcome.UnmatchedSales),
	}

	matched := decimal.Zero
	for _, pair := range outcome.Pairs {
		if pair.IsExact() {
			summary.ExactMatches++
		} else {
			summary.FuzzyMatches++
		}
		matched = matched.Add(pair.BankRecord.Amount)
	}
	summary.TotalMatched = len(outcome.Pairs)
	summary.MatchedAmount = matched.Round(2)
	summary.MatchRate = MatchRate(len(outcome.Pairs), len(bank), len(sales))

	return summary
}

// MatchRate is matched pairs over the larger input, as a percentage with one
// decimal. Two empty inputs give 0.
func MatchRate(matched, totalBank, totalSales int) float64 {
	denominator := totalBank
	if totalSales > denominator {
		denominator = totalSales
	}
	if denominator == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(matched)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(denominator))).
		Round(1).
		InexactFloat64()
}

func sum(records []*models.TransactionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total.Round(2)
}
