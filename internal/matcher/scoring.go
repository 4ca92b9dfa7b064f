package matcher

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"

	"ledger-reconciliation-service/internal/models"
)

// ScoreBreakdown holds the individual terms of a fuzzy score.
type ScoreBreakdown struct {
	Amount    decimal.Decimal
	Date      decimal.Decimal
	Reference decimal.Decimal
}

// Total returns the sum of the terms.
func (s ScoreBreakdown) Total() decimal.Decimal {
	return s.Amount.Add(s.Date).Add(s.Reference)
}

// Score computes the fuzzy confidence of pairing bank with sales.
//
// The amount term is 0.5 scaled linearly down to 0 at the amount tolerance.
// The date term is 0.3 scaled down to 0 at the date tolerance and needs
// both dates. The reference term is 0.2 for equal references, 0.1 when one
// contains the other and needs both references.
func Score(bank, sales *models.TransactionRecord, config *MatchingConfig) ScoreBreakdown {
	return ScoreBreakdown{
		Amount:    amountScore(bank.Amount.Sub(sales.Amount).Abs(), config.AmountTolerance),
		Date:      dateScore(bank, sales, config.DateToleranceDays),
		Reference: referenceScore(bank.Reference, sales.Reference),
	}
}

func amountScore(diff, tolerance decimal.Decimal) decimal.Decimal {
	if diff.GreaterThan(tolerance) {
		return decimal.Zero
	}
	if !tolerance.IsPositive() {
		// only reachable with diff == 0
		return amountWeight
	}
	score := amountWeight.Mul(tolerance.Sub(diff)).Div(tolerance)
	if score.IsNegative() {
		return decimal.Zero
	}
	return score
}

func dateScore(bank, sales *models.TransactionRecord, toleranceDays int) decimal.Decimal {
	if bank.Date == nil || sales.Date == nil {
		return decimal.Zero
	}
	days := absInt(DayDiff(bank, sales))
	if days > toleranceDays {
		return decimal.Zero
	}
	if toleranceDays == 0 {
		return dateWeight
	}
	tol := decimal.NewFromInt(int64(toleranceDays))
	return dateWeight.Mul(tol.Sub(decimal.NewFromInt(int64(days)))).Div(tol)
}

func referenceScore(bankRef, salesRef string) decimal.Decimal {
	if bankRef == "" || salesRef == "" {
		return decimal.Zero
	}
	b, s := referenceKey(bankRef), referenceKey(salesRef)
	switch {
	case b == s:
		return referenceWeight
	case strings.Contains(b, s) || strings.Contains(s, b):
		return partialRefScore
	default:
		return decimal.Zero
	}
}

// DayDiff returns bank date minus sales date in days, or 0 when either is missing.
func DayDiff(bank, sales *models.TransactionRecord) int {
	if bank.Date == nil || sales.Date == nil {
		return 0
	}
	return bank.Date.DaysSince(*sales.Date)
}

// ReferencesEqual reports case-insensitive equality of two references.
func ReferencesEqual(a, b string) bool {
	return referenceKey(a) == referenceKey(b)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type candidate struct {
	index int
	score decimal.Decimal
}

// selectBest scores every unmatched sales record against bank and returns
// the highest scorer. Ties keep the lowest sales index. ok is false when no
// candidate remains.
func (e *Engine) selectBest(bank *models.TransactionRecord, sales []*models.TransactionRecord, matched []bool) (candidate, bool) {
	open := make([]int, 0, len(sales))
	for i := range sales {
		if !matched[i] {
			open = append(open, i)
		}
	}
	if len(open) == 0 {
		return candidate{}, false
	}

	score := func(i *int) decimal.Decimal {
		return Score(bank, sales[*i], e.config).Total()
	}

	var scores []decimal.Decimal
	if e.config.ParallelScoring {
		mapper := iter.Mapper[int, decimal.Decimal]{MaxGoroutines: e.config.MaxScoringWorkers}
		scores = mapper.Map(open, score)
	} else {
		scores = make([]decimal.Decimal, len(open))
		for k := range open {
			scores[k] = score(&open[k])
		}
	}

	best := candidate{index: open[0], score: scores[0]}
	for k := 1; k < len(open); k++ {
		if scores[k].GreaterThan(best.score) {
			best = candidate{index: open[k], score: scores[k]}
		}
	}
	return best, true
}
