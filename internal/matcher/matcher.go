package matcher

import (
	"github.com/google/uuid"

	"ledger-reconciliation-service/internal/models"
)

// Outcome is the raw product of one engine run, before aggregation.
type Outcome struct {
	// Pairs holds exact pairs first, then fuzzy pairs, each group in bank order.
	Pairs          []*models.MatchedPair
	UnmatchedBank  []*models.TransactionRecord
	UnmatchedSales []*models.TransactionRecord
}

// Engine runs the two matching passes. It keeps no state between runs and
// may be shared by concurrent callers.
type Engine struct {
	config *MatchingConfig
}

// NewEngine creates an engine. A nil config means DefaultMatchingConfig.
func NewEngine(config *MatchingConfig) *Engine {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &Engine{config: config.Clone()}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *MatchingConfig {
	return e.config.Clone()
}

// run is the bookkeeping of a single Match call.
type run struct {
	bank, sales  []*models.TransactionRecord
	bankMatched  []bool
	salesMatched []bool
	pairs        []*models.MatchedPair
}

// Match pairs bank records with sales records. The input slices are only
// read. Any two lists, including empty ones, produce a valid outcome.
func (e *Engine) Match(bank, sales []*models.TransactionRecord) *Outcome {
	r := &run{
		bank:         bank,
		sales:        sales,
		bankMatched:  make([]bool, len(bank)),
		salesMatched: make([]bool, len(sales)),
	}

	e.exactPass(r)
	e.fuzzyPass(r)

	outcome := &Outcome{
		Pairs:          r.pairs,
		UnmatchedBank:  unmatched(bank, r.bankMatched),
		UnmatchedSales: unmatched(sales, r.salesMatched),
	}
	if outcome.Pairs == nil {
		outcome.Pairs = []*models.MatchedPair{}
	}
	return outcome
}

func (e *Engine) exactPass(r *run) {
	index := NewReferenceIndex(r.sales)

	for bi, bank := range r.bank {
		if r.bankMatched[bi] || bank.Reference == "" {
			continue
		}
		for _, si := range index.Lookup(bank.Reference) {
			if r.salesMatched[si] || !isExactMatch(bank, r.sales[si]) {
				continue
			}
			r.accept(bi, si, models.MatchTypeExact, 1.0, true)
			break
		}
	}
}

func isExactMatch(bank, sales *models.TransactionRecord) bool {
	if bank.Date == nil || sales.Date == nil || *bank.Date != *sales.Date {
		return false
	}
	return bank.Amount.Sub(sales.Amount).Abs().LessThan(ExactAmountEpsilon)
}

func (e *Engine) fuzzyPass(r *run) {
	for bi, bank := range r.bank {
		if r.bankMatched[bi] {
			continue
		}
		best, ok := e.selectBest(bank, r.sales, r.salesMatched)
		if !ok || best.score.LessThan(MinFuzzyConfidence) {
			continue
		}
		r.accept(bi, best.index, models.MatchTypeFuzzy, best.score.InexactFloat64(),
			ReferencesEqual(bank.Reference, r.sales[best.index].Reference))
	}
}

func (r *run) accept(bi, si int, matchType models.MatchType, confidence float64, referenceMatch bool) {
	bank, sales := r.bank[bi], r.sales[si]
	r.bankMatched[bi] = true
	r.salesMatched[si] = true
	r.pairs = append(r.pairs, &models.MatchedPair{
		ID:             uuid.NewString(),
		BankRecord:     bank,
		SalesRecord:    sales,
		MatchType:      matchType,
		Confidence:     confidence,
		AmountDiff:     bank.Amount.Sub(sales.Amount).Round(2),
		DateDiff:       DayDiff(bank, sales),
		ReferenceMatch: referenceMatch,
	})
}

func unmatched(records []*models.TransactionRecord, matched []bool) []*models.TransactionRecord {
	out := make([]*models.TransactionRecord, 0, len(records))
	for i, r := range records {
		if !matched[i] {
			out = append(out, r)
		}
	}
	return out
}
