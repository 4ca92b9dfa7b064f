package reconciler

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"ledger-reconciliation-service/internal/matcher"
	"ledger-reconciliation-service/internal/models"
)

func record(source models.Source, date, amount, reference string) *models.TransactionRecord {
	var d *civil.Date
	if date != "" {
		parsed, err := civil.ParseDate(date)
		if err != nil {
			panic(err)
		}
		d = &parsed
	}
	return models.NewTransactionRecord(source, d, decimal.RequireFromString(amount), reference, "", nil)
}

func scenarioA() (bank, sales []*models.TransactionRecord) {
	bank = []*models.TransactionRecord{
		record(models.SourceBank, "2024-01-01", "100.00", "REF001"),
		record(models.SourceBank, "2024-01-02", "150.50", "REF002"),
		record(models.SourceBank, "2024-01-03", "300.00", "REF003"),
		record(models.SourceBank, "2024-01-04", "500.00", "REF004"),
	}
	sales = []*models.TransactionRecord{
		record(models.SourceSales, "2024-01-01", "100.00", "REF001"),
		record(models.SourceSales, "2024-01-02", "150.40", "REF002"),
		record(models.SourceSales, "2024-01-05", "300.00", "REF003"),
		record(models.SourceSales, "2024-01-10", "999.00", "REF005"),
	}
	return bank, sales
}

func TestReconcileScenarioSummary(t *testing.T) {
	bank, sales := scenarioA()

	result := Reconcile(bank, sales, matcher.DefaultMatchingConfig())
	s := result.Summary

	if s.TotalBank != 4 || s.TotalSales != 4 {
		t.Errorf("Expected 4/4 records, got %d/%d", s.TotalBank, s.TotalSales)
	}
	if s.ExactMatches != 1 {
		t.Errorf("Expected 1 exact match, got %d", s.ExactMatches)
	}
	if s.FuzzyMatches != 2 {
		t.Errorf("Expected 2 fuzzy matches, got %d", s.FuzzyMatches)
	}
	if result.MatchedCount() != 3 || s.TotalMatched != 3 {
		t.Errorf("Expected 3 matched pairs, got %d (summary %d)", result.MatchedCount(), s.TotalMatched)
	}
	if s.MatchRate != 75.0 || result.MatchRate() != 75.0 {
		t.Errorf("Expected match rate 75.0, got %v", s.MatchRate)
	}

	amounts := []struct {
		name     string
		got      decimal.Decimal
		expected string
	}{
		{"bank total", s.TotalBankAmount, "1050.50"},
		{"sales total", s.TotalSalesAmount, "1549.40"},
		{"matched", s.MatchedAmount, "550.50"},
		{"unmatched bank", s.UnmatchedBankAmount, "500"},
		{"unmatched sales", s.UnmatchedSalesAmount, "999"},
	}
	for _, a := range amounts {
		if !a.got.Equal(decimal.RequireFromString(a.expected)) {
			t.Errorf("Expected %s amount %s, got %s", a.name, a.expected, a.got)
		}
	}

	if result.ID == "" {
		t.Error("Expected a result id")
	}
	if result.CreatedAt.IsZero() {
		t.Error("Expected a creation time")
	}
}

func TestReconcileEmptyInputs(t *testing.T) {
	result := Reconcile(nil, nil, nil)

	if result.Summary.MatchRate != 0 {
		t.Errorf("Expected match rate 0, got %v", result.Summary.MatchRate)
	}
	if len(result.MatchedPairs) != 0 || len(result.UnmatchedBank) != 0 || len(result.UnmatchedSales) != 0 {
		t.Error("Expected an empty result")
	}
	if !result.Summary.TotalBankAmount.IsZero() {
		t.Errorf("Expected zero bank total, got %s", result.Summary.TotalBankAmount)
	}
}

func TestMatchRate(t *testing.T) {
	tests := []struct {
		matched, bank, sales int
		expected             float64
	}{
		{0, 0, 0, 0},
		{3, 4, 4, 75},
		{1, 3, 1, 33.3},
		{2, 3, 2, 66.7},
		{5, 5, 5, 100},
		{0, 10, 0, 0},
	}

	for _, tt := range tests {
		if got := MatchRate(tt.matched, tt.bank, tt.sales); got != tt.expected {
			t.Errorf("MatchRate(%d, %d, %d) = %v, expected %v", tt.matched, tt.bank, tt.sales, got, tt.expected)
		}
	}
}

func TestSummarizeRoundsSums(t *testing.T) {
	bank := []*models.TransactionRecord{
		record(models.SourceBank, "2024-01-01", "0.105", "A"),
		record(models.SourceBank, "2024-01-01", "0.001", "B"),
	}

	outcome := matcher.NewEngine(nil).Match(bank, nil)
	summary := Summarize(bank, nil, outcome)

	if !summary.TotalBankAmount.Equal(decimal.RequireFromString("0.11")) {
		t.Errorf("Expected bank total rounded to 0.11, got %s", summary.TotalBankAmount)
	}
	if !summary.UnmatchedBankAmount.Equal(summary.TotalBankAmount) {
		t.Errorf("Expected every bank amount unmatched, got %s", summary.UnmatchedBankAmount)
	}
}
