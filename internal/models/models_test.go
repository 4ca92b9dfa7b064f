package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		input    string
		expected Source
		wantErr  bool
	}{
		{"bank", SourceBank, false},
		{" Sales ", SourceSales, false},
		{"BANK", SourceBank, false},
		{"ledger", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSource(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSource(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNewTransactionRecord(t *testing.T) {
	a := NewTransactionRecord(SourceBank, Date(2024, 1, 15), decimal.NewFromInt(100), "REF001", "Payment", nil)
	b := NewTransactionRecord(SourceBank, nil, decimal.Zero, "", "", nil)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.DateString() != "2024-01-15" {
		t.Errorf("Expected 2024-01-15, got %s", a.DateString())
	}
	if a.IsEmpty() {
		t.Error("Record with amount and date should not be empty")
	}
	if !b.IsEmpty() {
		t.Error("Record without amount and date should be empty")
	}
	if b.HasDate() || b.DateString() != "" {
		t.Error("Record without date should report no date")
	}
}

func TestOriginalDataPreservesHeaderOrder(t *testing.T) {
	original := OriginalData{
		{Header: "Fecha", Value: "15/01/2024"},
		{Header: "Monto", Value: 100.5},
		{Header: "Referencia", Value: nil},
		{Header: "Abono", Value: "x"},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	expected := `{"Fecha":"15/01/2024","Monto":100.5,"Referencia":null,"Abono":"x"}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}

	var decoded OriginalData
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded) != 4 {
		t.Fatalf("Expected 4 fields, got %d", len(decoded))
	}
	for i, f := range decoded {
		if f.Header != original[i].Header {
			t.Errorf("field %d: expected header %s, got %s", i, original[i].Header, f.Header)
		}
	}
	if v, ok := decoded.Get("Monto"); !ok || v != 100.5 {
		t.Errorf("Expected Monto 100.5, got %v", v)
	}

	if err := json.Unmarshal([]byte(`["a"]`), &decoded); err == nil {
		t.Error("Expected an error for a non-object payload")
	}
}

func TestReconciliationResultJSON(t *testing.T) {
	bank := NewTransactionRecord(SourceBank, Date(2024, 1, 15), decimal.RequireFromString("100.00"), "REF001", "Pago", OriginalData{{Header: "Monto", Value: "100.00"}})
	sales := NewTransactionRecord(SourceSales, nil, decimal.RequireFromString("99.50"), "REF001", "", nil)

	result := &ReconciliationResult{
		ID: "run-1",
		MatchedPairs: []*MatchedPair{{
			ID:             "pair-1",
			BankRecord:     bank,
			SalesRecord:    sales,
			MatchType:      MatchTypeFuzzy,
			Confidence:     0.85,
			AmountDiff:     decimal.RequireFromString("0.50"),
			DateDiff:       0,
			ReferenceMatch: true,
		}},
		UnmatchedBank:  []*TransactionRecord{},
		UnmatchedSales: []*TransactionRecord{},
		Summary: Summary{
			TotalBank:        1,
			TotalSales:       1,
			FuzzyMatches:     1,
			TotalMatched:     1,
			TotalBankAmount:  decimal.RequireFromString("100"),
			TotalSalesAmount: decimal.RequireFromString("99.5"),
			MatchedAmount:    decimal.RequireFromString("100"),
			MatchRate:        100,
		},
		CreatedAt: time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"date":null`) {
		t.Errorf("Expected null date for the sales record, got %s", data)
	}
	if !strings.Contains(string(data), `"total_matched":1`) {
		t.Errorf("Expected total_matched in the summary, got %s", data)
	}
	if !strings.Contains(string(data), `"date":"2024-01-15"`) {
		t.Errorf("Expected ISO date for the bank record, got %s", data)
	}

	var decoded ReconciliationResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	pair := decoded.MatchedPairs[0]
	if pair.BankRecord.ID != bank.ID || pair.SalesRecord.Date != nil {
		t.Errorf("Pair records not restored: %+v / %+v", pair.BankRecord, pair.SalesRecord)
	}
	if *pair.BankRecord.Date != *bank.Date {
		t.Errorf("Expected bank date %s, got %s", bank.Date, pair.BankRecord.Date)
	}
	if !pair.AmountDiff.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Expected amount diff 0.5, got %s", pair.AmountDiff)
	}
	if pair.MatchType != MatchTypeFuzzy || pair.Confidence != 0.85 || !pair.ReferenceMatch {
		t.Errorf("Pair attributes not restored: %+v", pair)
	}
	if !decoded.Summary.TotalSalesAmount.Equal(decimal.RequireFromString("99.5")) {
		t.Errorf("Expected sales total 99.5, got %s", decoded.Summary.TotalSalesAmount)
	}
	if !decoded.CreatedAt.Equal(result.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", result.CreatedAt, decoded.CreatedAt)
	}
	if decoded.Summary.TotalMatched != 1 || decoded.MatchRate() != 100 {
		t.Errorf("Expected 1 matched at 100%%, got %d at %v", decoded.Summary.TotalMatched, decoded.MatchRate())
	}
	if !decoded.Difference().Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Expected difference 0.5, got %s", decoded.Difference())
	}
}

func TestMatchTypeLabelsAndPercentages(t *testing.T) {
	if MatchTypeExact.Label() != "Exact" || MatchTypeFuzzy.Label() != "Fuzzy" {
		t.Errorf("unexpected labels %s / %s", MatchTypeExact.Label(), MatchTypeFuzzy.Label())
	}

	tests := []struct {
		confidence float64
		expected   float64
	}{
		{1.0, 100},
		{0.95, 95},
		{0.8, 80},
		{0.7333333, 73.3},
		{0.66666, 66.7},
	}
	for _, tt := range tests {
		p := &MatchedPair{Confidence: tt.confidence}
		if got := p.ConfidencePercentage(); got != tt.expected {
			t.Errorf("ConfidencePercentage(%v) = %v, expected %v", tt.confidence, got, tt.expected)
		}
	}
}

func TestPairsOfType(t *testing.T) {
	result := &ReconciliationResult{MatchedPairs: []*MatchedPair{
		{ID: "1", MatchType: MatchTypeExact},
		{ID: "2", MatchType: MatchTypeFuzzy},
		{ID: "3", MatchType: MatchTypeExact},
	}}

	exact := result.PairsOfType(MatchTypeExact)
	if len(exact) != 2 || exact[0].ID != "1" || exact[1].ID != "3" {
		t.Errorf("unexpected exact pairs: %v", exact)
	}
	if len(result.PairsOfType(MatchTypeFuzzy)) != 1 {
		t.Error("expected one fuzzy pair")
	}
}

func TestFieldMapMissing(t *testing.T) {
	fm := FieldMap{
		FieldAmount:    {Index: 1, Name: "Monto"},
		FieldReference: {Index: 2, Name: "Ref"},
	}

	missing := fm.Missing()
	if len(missing) != 2 || missing[0] != FieldDate || missing[1] != FieldDescription {
		t.Errorf("Expected [date description], got %v", missing)
	}
	if f, ok := fm.Get(FieldAmount); !ok || f.Name != "Monto" {
		t.Errorf("unexpected amount field %+v", f)
	}
}
