package matcher

import (
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"ledger-reconciliation-service/internal/models"
)

func record(source models.Source, date string, amount string, reference string) *models.TransactionRecord {
	r := models.NewTransactionRecord(source, nil, decimal.RequireFromString(amount), reference, "", nil)
	if date != "" {
		d, err := civil.ParseDate(date)
		if err != nil {
			panic(err)
		}
		r.Date = &d
	}
	return r
}

func bankRecord(date, amount, reference string) *models.TransactionRecord {
	return record(models.SourceBank, date, amount, reference)
}

func salesRecord(date, amount, reference string) *models.TransactionRecord {
	return record(models.SourceSales, date, amount, reference)
}

func createScenarioData() ([]*models.TransactionRecord, []*models.TransactionRecord) {
	bank := []*models.TransactionRecord{
		bankRecord("2024-01-01", "100.00", "REF001"),
		bankRecord("2024-01-02", "150.50", "REF002"),
		bankRecord("2024-01-03", "300.00", "REF003"),
		bankRecord("2024-01-04", "500.00", "REF004"),
	}
	sales := []*models.TransactionRecord{
		salesRecord("2024-01-01", "100.00", "REF001"),
		salesRecord("2024-01-02", "150.40", "REF002"),
		salesRecord("2024-01-05", "300.00", "REF003"),
		salesRecord("2024-01-10", "999.00", "REF005"),
	}
	return bank, sales
}

func pairRefs(pairs []*models.MatchedPair) []string {
	refs := make([]string, len(pairs))
	for i, p := range pairs {
		refs[i] = fmt.Sprintf("%s/%s/%s", p.BankRecord.Reference, p.SalesRecord.Reference, p.MatchType)
	}
	return refs
}

func assertPartition(t *testing.T, bank, sales []*models.TransactionRecord, outcome *Outcome) {
	t.Helper()

	seen := map[*models.TransactionRecord]int{}
	for _, p := range outcome.Pairs {
		seen[p.BankRecord]++
		seen[p.SalesRecord]++
	}
	for _, r := range outcome.UnmatchedBank {
		seen[r]++
	}
	for _, r := range outcome.UnmatchedSales {
		seen[r]++
	}

	for _, r := range append(append([]*models.TransactionRecord{}, bank...), sales...) {
		if seen[r] != 1 {
			t.Errorf("record %s appears %d times, expected exactly once", r, seen[r])
		}
	}
	if len(seen) != len(bank)+len(sales) {
		t.Errorf("Expected %d distinct records, got %d", len(bank)+len(sales), len(seen))
	}
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine(nil)
	if engine.Config().DateToleranceDays != 3 {
		t.Errorf("Expected default config, got %s", engine.Config())
	}

	config := StrictMatchingConfig()
	engine = NewEngine(config)
	config.DateToleranceDays = 10
	if engine.Config().DateToleranceDays != 1 {
		t.Error("Engine should not observe changes to the caller's config")
	}
}

func TestScenarioDefaultTolerances(t *testing.T) {
	bank, sales := createScenarioData()

	outcome := NewEngine(DefaultMatchingConfig()).Match(bank, sales)

	if len(outcome.Pairs) != 3 {
		t.Fatalf("Expected 3 pairs, got %d: %v", len(outcome.Pairs), pairRefs(outcome.Pairs))
	}

	expected := []struct {
		ref        string
		matchType  models.MatchType
		confidence float64
		amountDiff string
		dateDiff   int
	}{
		{"REF001", models.MatchTypeExact, 1.0, "0", 0},
		{"REF002", models.MatchTypeFuzzy, 0.95, "0.1", 0},
		{"REF003", models.MatchTypeFuzzy, 0.8, "0", -2},
	}
	for i, want := range expected {
		p := outcome.Pairs[i]
		if p.BankRecord.Reference != want.ref || p.SalesRecord.Reference != want.ref {
			t.Errorf("pair %d: expected %s, got %s/%s", i, want.ref, p.BankRecord.Reference, p.SalesRecord.Reference)
		}
		if p.MatchType != want.matchType {
			t.Errorf("pair %d: expected %s, got %s", i, want.matchType, p.MatchType)
		}
		if p.Confidence != want.confidence {
			t.Errorf("pair %d: expected confidence %v, got %v", i, want.confidence, p.Confidence)
		}
		if !p.AmountDiff.Equal(decimal.RequireFromString(want.amountDiff)) {
			t.Errorf("pair %d: expected amount diff %s, got %s", i, want.amountDiff, p.AmountDiff)
		}
		if p.DateDiff != want.dateDiff {
			t.Errorf("pair %d: expected date diff %d, got %d", i, want.dateDiff, p.DateDiff)
		}
		if !p.ReferenceMatch {
			t.Errorf("pair %d: expected reference match", i)
		}
		if p.ID == "" {
			t.Errorf("pair %d: expected an ID", i)
		}
	}

	if len(outcome.UnmatchedBank) != 1 || outcome.UnmatchedBank[0].Reference != "REF004" {
		t.Errorf("Expected REF004 unmatched on the bank side, got %v", outcome.UnmatchedBank)
	}
	if len(outcome.UnmatchedSales) != 1 || outcome.UnmatchedSales[0].Reference != "REF005" {
		t.Errorf("Expected REF005 unmatched on the sales side, got %v", outcome.UnmatchedSales)
	}
	assertPartition(t, bank, sales, outcome)
}

func TestScenarioStrictTolerances(t *testing.T) {
	bank, sales := createScenarioData()

	outcome := NewEngine(StrictMatchingConfig()).Match(bank, sales)

	got := pairRefs(outcome.Pairs)
	want := []string{"REF001/REF001/exact", "REF003/REF003/fuzzy"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Expected pairs %v, got %v", want, got)
	}

	// amount term 0.5 and reference term 0.2 carry the pair even though the
	// two-day gap is outside the one-day tolerance
	if outcome.Pairs[1].Confidence != 0.7 {
		t.Errorf("Expected confidence 0.7, got %v", outcome.Pairs[1].Confidence)
	}

	unmatchedBank := []string{}
	for _, r := range outcome.UnmatchedBank {
		unmatchedBank = append(unmatchedBank, r.Reference)
	}
	if fmt.Sprint(unmatchedBank) != "[REF002 REF004]" {
		t.Errorf("Expected REF002 and REF004 unmatched, got %v", unmatchedBank)
	}
	if len(outcome.UnmatchedSales) != 2 {
		t.Errorf("Expected 2 unmatched sales, got %d", len(outcome.UnmatchedSales))
	}
	assertPartition(t, bank, sales, outcome)
}

func TestMatchEmptyInputs(t *testing.T) {
	tests := []struct {
		name  string
		bank  []*models.TransactionRecord
		sales []*models.TransactionRecord
	}{
		{"both empty", nil, nil},
		{"no sales", []*models.TransactionRecord{bankRecord("2024-01-01", "10", "A")}, nil},
		{"no bank", nil, []*models.TransactionRecord{salesRecord("2024-01-01", "10", "A")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := NewEngine(nil).Match(tt.bank, tt.sales)
			if len(outcome.Pairs) != 0 {
				t.Errorf("Expected no pairs, got %d", len(outcome.Pairs))
			}
			if len(outcome.UnmatchedBank) != len(tt.bank) || len(outcome.UnmatchedSales) != len(tt.sales) {
				t.Errorf("Expected every record unmatched, got %d/%d", len(outcome.UnmatchedBank), len(outcome.UnmatchedSales))
			}
			assertPartition(t, tt.bank, tt.sales, outcome)
		})
	}
}

func TestExactPassFirstSalesRecordWins(t *testing.T) {
	bank := []*models.TransactionRecord{bankRecord("2024-02-01", "50.00", "inv-9")}
	sales := []*models.TransactionRecord{
		salesRecord("2024-02-01", "50.00", "OTHER"),
		salesRecord("2024-02-01", "50.00", "INV-9"),
		salesRecord("2024-02-01", "50.00", "INV-9"),
	}

	outcome := NewEngine(nil).Match(bank, sales)

	if len(outcome.Pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(outcome.Pairs))
	}
	if outcome.Pairs[0].SalesRecord != sales[1] {
		t.Error("Expected the first sales record with the same reference to win")
	}
	if !outcome.Pairs[0].IsExact() || outcome.Pairs[0].Confidence != 1.0 {
		t.Errorf("Expected an exact pair with confidence 1, got %+v", outcome.Pairs[0])
	}
}

func TestExactPassRequirements(t *testing.T) {
	tests := []struct {
		name      string
		bank      *models.TransactionRecord
		sales     *models.TransactionRecord
		wantExact bool
	}{
		{"all equal", bankRecord("2024-01-01", "10.00", "A1"), salesRecord("2024-01-01", "10.00", "a1"), true},
		{"sub cent difference", bankRecord("2024-01-01", "10.004", "A1"), salesRecord("2024-01-01", "10.00", "A1"), true},
		{"one cent difference", bankRecord("2024-01-01", "10.01", "A1"), salesRecord("2024-01-01", "10.00", "A1"), false},
		{"different dates", bankRecord("2024-01-01", "10.00", "A1"), salesRecord("2024-01-02", "10.00", "A1"), false},
		{"missing dates", bankRecord("", "10.00", "A1"), salesRecord("", "10.00", "A1"), false},
		{"empty references", bankRecord("2024-01-01", "10.00", ""), salesRecord("2024-01-01", "10.00", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := NewEngine(nil).Match([]*models.TransactionRecord{tt.bank}, []*models.TransactionRecord{tt.sales})
			exact := len(outcome.Pairs) == 1 && outcome.Pairs[0].IsExact()
			if exact != tt.wantExact {
				t.Errorf("Expected exact=%v, got pairs %v", tt.wantExact, pairRefs(outcome.Pairs))
			}
		})
	}
}

func TestExactMatchesComeBeforeFuzzy(t *testing.T) {
	// The first bank record would take sales[0] as a fuzzy match, but the
	// exact pass runs over all bank records first and claims it for bank[1].
	bank := []*models.TransactionRecord{
		bankRecord("2024-03-01", "20.00", "X"),
		bankRecord("2024-03-01", "20.00", "ORDER-1"),
	}
	sales := []*models.TransactionRecord{
		salesRecord("2024-03-01", "20.00", "ORDER-1"),
	}

	outcome := NewEngine(nil).Match(bank, sales)

	if len(outcome.Pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(outcome.Pairs))
	}
	if outcome.Pairs[0].BankRecord != bank[1] || !outcome.Pairs[0].IsExact() {
		t.Errorf("Expected the exact pair for ORDER-1, got %v", pairRefs(outcome.Pairs))
	}
	if len(outcome.UnmatchedBank) != 1 || outcome.UnmatchedBank[0] != bank[0] {
		t.Error("Expected bank[0] to stay unmatched")
	}
}

func TestFuzzyPassTieKeepsLowestSalesIndex(t *testing.T) {
	bank := []*models.TransactionRecord{bankRecord("2024-01-10", "100.00", "")}
	sales := []*models.TransactionRecord{
		salesRecord("2024-01-10", "100.00", "A"),
		salesRecord("2024-01-10", "100.00", "B"),
	}

	outcome := NewEngine(nil).Match(bank, sales)

	if len(outcome.Pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(outcome.Pairs))
	}
	if outcome.Pairs[0].SalesRecord != sales[0] {
		t.Error("Expected the earlier sales record to win the tie")
	}
	if outcome.Pairs[0].Confidence != 0.8 || outcome.Pairs[0].ReferenceMatch {
		t.Errorf("Expected confidence 0.8 without reference match, got %+v", outcome.Pairs[0])
	}
}

func TestFuzzyPassPicksHighestScore(t *testing.T) {
	bank := []*models.TransactionRecord{bankRecord("2024-01-10", "100.00", "PAY-77")}
	sales := []*models.TransactionRecord{
		salesRecord("2024-01-12", "100.50", "PAY-77"),
		salesRecord("2024-01-10", "100.00", "77"),
	}

	outcome := NewEngine(nil).Match(bank, sales)

	// sales[0]: 0.25 + 0.1 + 0.2 = 0.55; sales[1]: 0.5 + 0.3 + 0.1 = 0.9
	if len(outcome.Pairs) != 1 || outcome.Pairs[0].SalesRecord != sales[1] {
		t.Fatalf("Expected sales[1] to win, got %v", pairRefs(outcome.Pairs))
	}
	if outcome.Pairs[0].Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", outcome.Pairs[0].Confidence)
	}
	if outcome.Pairs[0].ReferenceMatch {
		t.Error("Substring references are not a reference match")
	}
}

func TestFuzzyPassBelowThreshold(t *testing.T) {
	bank := []*models.TransactionRecord{bankRecord("2024-01-10", "100.00", "")}
	sales := []*models.TransactionRecord{salesRecord("2024-01-11", "100.50", "")}

	// 0.25 + 0.2 = 0.45
	outcome := NewEngine(nil).Match(bank, sales)
	if len(outcome.Pairs) != 0 {
		t.Errorf("Expected no pairs, got %v", pairRefs(outcome.Pairs))
	}
}

func TestFuzzyPassAcceptsExactlyThreshold(t *testing.T) {
	bank := []*models.TransactionRecord{bankRecord("", "100.00", "ABC")}
	sales := []*models.TransactionRecord{salesRecord("", "100.00", "ABCD")}

	// 0.5 + 0.1 = 0.6
	outcome := NewEngine(nil).Match(bank, sales)
	if len(outcome.Pairs) != 1 {
		t.Fatalf("Expected the pair at the threshold to be accepted")
	}
	if outcome.Pairs[0].DateDiff != 0 {
		t.Errorf("Expected date diff 0 without dates, got %d", outcome.Pairs[0].DateDiff)
	}
}

func TestAmountDiffKeepsSign(t *testing.T) {
	bank := []*models.TransactionRecord{bankRecord("2024-01-10", "99.555", "R")}
	sales := []*models.TransactionRecord{salesRecord("2024-01-09", "100.00", "R")}

	outcome := NewEngine(nil).Match(bank, sales)
	if len(outcome.Pairs) != 1 {
		t.Fatalf("Expected a fuzzy pair")
	}
	if !outcome.Pairs[0].AmountDiff.Equal(decimal.RequireFromString("-0.45")) {
		t.Errorf("Expected -0.45, got %s", outcome.Pairs[0].AmountDiff)
	}
	if outcome.Pairs[0].DateDiff != 1 {
		t.Errorf("Expected date diff 1, got %d", outcome.Pairs[0].DateDiff)
	}
}

func createBulkData(n int) ([]*models.TransactionRecord, []*models.TransactionRecord) {
	var bank, sales []*models.TransactionRecord
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		day := base.AddDate(0, 0, i%20).Format("2006-01-02")
		shifted := base.AddDate(0, 0, (i+i%3)%20).Format("2006-01-02")
		bank = append(bank, bankRecord(day, fmt.Sprintf("%d.%02d", 10+i%7, i%100), fmt.Sprintf("REF%03d", i%17)))
		sales = append(sales, salesRecord(shifted, fmt.Sprintf("%d.%02d", 10+i%7, (i*3)%100), fmt.Sprintf("REF%03d", i%13)))
	}
	return bank, sales
}

func TestMatchIsDeterministic(t *testing.T) {
	bank, sales := createBulkData(120)
	engine := NewEngine(nil)

	first := engine.Match(bank, sales)
	second := engine.Match(bank, sales)

	if len(first.Pairs) != len(second.Pairs) {
		t.Fatalf("Expected identical pair counts, got %d and %d", len(first.Pairs), len(second.Pairs))
	}
	for i := range first.Pairs {
		a, b := first.Pairs[i], second.Pairs[i]
		if a.BankRecord != b.BankRecord || a.SalesRecord != b.SalesRecord || a.Confidence != b.Confidence || a.MatchType != b.MatchType {
			t.Fatalf("pair %d differs between runs", i)
		}
	}
	assertPartition(t, bank, sales, first)
}

func TestParallelScoringMatchesSequential(t *testing.T) {
	bank, sales := createBulkData(150)

	sequential := NewEngine(DefaultMatchingConfig()).Match(bank, sales)

	config := DefaultMatchingConfig()
	config.ParallelScoring = true
	config.MaxScoringWorkers = 4
	parallel := NewEngine(config).Match(bank, sales)

	if len(sequential.Pairs) != len(parallel.Pairs) {
		t.Fatalf("Expected %d pairs, got %d", len(sequential.Pairs), len(parallel.Pairs))
	}
	for i := range sequential.Pairs {
		s, p := sequential.Pairs[i], parallel.Pairs[i]
		if s.BankRecord != p.BankRecord || s.SalesRecord != p.SalesRecord || s.Confidence != p.Confidence {
			t.Fatalf("pair %d differs: %s/%s vs %s/%s", i, s.BankRecord, s.SalesRecord, p.BankRecord, p.SalesRecord)
		}
	}
	assertPartition(t, bank, sales, parallel)
}

func TestConfidenceBounds(t *testing.T) {
	bank, sales := createBulkData(80)
	outcome := NewEngine(nil).Match(bank, sales)

	for _, p := range outcome.Pairs {
		if p.Confidence < 0 || p.Confidence > 1 {
			t.Errorf("confidence out of range: %v", p.Confidence)
		}
		if p.MatchType == models.MatchTypeExact && p.Confidence != 1.0 {
			t.Errorf("exact pairs must have confidence 1, got %v", p.Confidence)
		}
		if p.MatchType == models.MatchTypeFuzzy && p.Confidence < 0.6 {
			t.Errorf("fuzzy pair below threshold: %v", p.Confidence)
		}
	}
}
