// Package matcher pairs bank records with sales records.
//
// Matching runs in two passes over the bank list in its original order:
//  1. Exact pass: same reference (case-insensitive), amounts within one
//     cent and identical dates. The first qualifying sales record wins.
//  2. Fuzzy pass: every remaining sales record is scored on amount, date
//     and reference closeness; the best scorer is accepted when it reaches
//     MinFuzzyConfidence.
//
// Both passes are greedy and order dependent. A sales record can be paired
// at most once.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.DateToleranceDays = 1
//
//	engine := matcher.NewEngine(config)
//	outcome := engine.Match(bankRecords, salesRecords)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// MinFuzzyConfidence is the lowest score the fuzzy pass accepts.
	MinFuzzyConfidence = decimal.RequireFromString("0.6")

	// ExactAmountEpsilon bounds the amount difference of an exact match.
	ExactAmountEpsilon = decimal.RequireFromString("0.01")

	amountWeight    = decimal.RequireFromString("0.5")
	dateWeight      = decimal.RequireFromString("0.3")
	referenceWeight = decimal.RequireFromString("0.2")
	partialRefScore = decimal.RequireFromString("0.1")
)

// MatchingConfig holds the tolerances of one reconciliation run.
type MatchingConfig struct {
	// AmountTolerance is the largest amount difference that still earns
	// part of the amount score, in the ledgers' currency unit.
	AmountTolerance decimal.Decimal `json:"amount_tolerance" yaml:"amount_tolerance"`

	// DateToleranceDays is the largest day difference that still earns part
	// of the date score.
	DateToleranceDays int `json:"date_tolerance_days" yaml:"date_tolerance_days"`

	// ParallelScoring scores the fuzzy candidates of one bank record
	// concurrently. Results are identical to sequential scoring.
	ParallelScoring bool `json:"parallel_scoring" yaml:"parallel_scoring"`

	// MaxScoringWorkers caps goroutines used by ParallelScoring. Zero means
	// GOMAXPROCS.
	MaxScoringWorkers int `json:"max_scoring_workers,omitempty" yaml:"max_scoring_workers,omitempty"`
}

// DefaultMatchingConfig returns the standard tolerances: one currency unit
// and three days.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerance:   decimal.NewFromInt(1),
		DateToleranceDays: 3,
	}
}

// StrictMatchingConfig returns tight tolerances: five cents and one day.
func StrictMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerance:   decimal.RequireFromString("0.05"),
		DateToleranceDays: 1,
	}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if !mc.AmountTolerance.IsPositive() {
		return fmt.Errorf("amount tolerance must be positive: %s", mc.AmountTolerance)
	}
	if mc.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", mc.DateToleranceDays)
	}
	if mc.MaxScoringWorkers < 0 {
		return fmt.Errorf("max scoring workers cannot be negative: %d", mc.MaxScoringWorkers)
	}
	return nil
}

// Clone returns a copy of the configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	clone := *mc
	return &clone
}

func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{AmountTolerance: %s, DateTolerance: %d days, Parallel: %t}",
		mc.AmountTolerance.StringFixed(2), mc.DateToleranceDays, mc.ParallelScoring)
}
