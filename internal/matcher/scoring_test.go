package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountScore(t *testing.T) {
	tol := decimal.NewFromInt(1)
	tests := []struct {
		name      string
		diff      string
		tolerance decimal.Decimal
		expected  string
	}{
		{"identical", "0", tol, "0.5"},
		{"ten cents", "0.10", tol, "0.45"},
		{"half tolerance", "0.5", tol, "0.25"},
		{"exactly at tolerance", "1", tol, "0"},
		{"beyond tolerance", "1.01", tol, "0"},
		{"zero tolerance identical", "0", decimal.Zero, "0.5"},
		{"zero tolerance any difference", "0.001", decimal.Zero, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := amountScore(decimal.RequireFromString(tt.diff), tt.tolerance)
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDateScore(t *testing.T) {
	tests := []struct {
		name      string
		bankDate  string
		salesDate string
		tolerance int
		expected  string
	}{
		{"same day", "2024-01-10", "2024-01-10", 3, "0.3"},
		{"one day", "2024-01-10", "2024-01-11", 3, "0.2"},
		{"two days earlier", "2024-01-10", "2024-01-08", 3, "0.1"},
		{"at tolerance", "2024-01-10", "2024-01-13", 3, "0"},
		{"beyond tolerance", "2024-01-10", "2024-01-20", 3, "0"},
		{"zero tolerance same day", "2024-01-10", "2024-01-10", 0, "0.3"},
		{"zero tolerance next day", "2024-01-10", "2024-01-11", 0, "0"},
		{"missing bank date", "", "2024-01-10", 3, "0"},
		{"missing sales date", "2024-01-10", "", 3, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dateScore(bankRecord(tt.bankDate, "1", ""), salesRecord(tt.salesDate, "1", ""), tt.tolerance)
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestReferenceScore(t *testing.T) {
	tests := []struct {
		bank, sales string
		expected    string
	}{
		{"REF001", "REF001", "0.2"},
		{"ref001", "REF001", "0.2"},
		{"REF001", "REF0011", "0.1"},
		{"INV-2024-77", "77", "0.1"},
		{"REF001", "REF002", "0"},
		{"", "REF001", "0"},
		{"REF001", "", "0"},
		{"", "", "0"},
	}

	for _, tt := range tests {
		got := referenceScore(tt.bank, tt.sales)
		if !got.Equal(decimal.RequireFromString(tt.expected)) {
			t.Errorf("referenceScore(%q, %q) = %s, expected %s", tt.bank, tt.sales, got, tt.expected)
		}
	}
}

func TestScoreTotal(t *testing.T) {
	config := DefaultMatchingConfig()
	bank := bankRecord("2024-01-02", "150.50", "REF002")
	sales := salesRecord("2024-01-02", "150.40", "REF002")

	breakdown := Score(bank, sales, config)

	if !breakdown.Amount.Equal(decimal.RequireFromString("0.45")) {
		t.Errorf("Expected amount term 0.45, got %s", breakdown.Amount)
	}
	if !breakdown.Date.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("Expected date term 0.3, got %s", breakdown.Date)
	}
	if !breakdown.Reference.Equal(decimal.RequireFromString("0.2")) {
		t.Errorf("Expected reference term 0.2, got %s", breakdown.Reference)
	}
	if !breakdown.Total().Equal(decimal.RequireFromString("0.95")) {
		t.Errorf("Expected total 0.95, got %s", breakdown.Total())
	}
}

func TestScoreNeverNegativeOrAboveOne(t *testing.T) {
	config := DefaultMatchingConfig()
	amounts := []string{"0", "0.5", "1", "2", "-3"}
	dates := []string{"", "2024-01-01", "2024-01-03", "2024-02-01"}

	for _, a := range amounts {
		for _, d := range dates {
			score := Score(bankRecord("2024-01-01", "0", "A"), salesRecord(d, a, "A"), config).Total()
			if score.IsNegative() || score.GreaterThan(decimal.NewFromInt(1)) {
				t.Errorf("score out of range for amount %s date %q: %s", a, d, score)
			}
		}
	}
}

func TestDayDiff(t *testing.T) {
	if got := DayDiff(bankRecord("2024-03-01", "1", ""), salesRecord("2024-02-28", "1", "")); got != 2 {
		t.Errorf("Expected 2 days across the leap day, got %d", got)
	}
	if got := DayDiff(bankRecord("2024-03-01", "1", ""), salesRecord("", "1", "")); got != 0 {
		t.Errorf("Expected 0 with a missing date, got %d", got)
	}
}
