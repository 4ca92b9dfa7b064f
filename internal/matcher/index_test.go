package matcher

import (
	"testing"

	"ledger-reconciliation-service/internal/models"
)

func TestReferenceIndex(t *testing.T) {
	sales := []*models.TransactionRecord{
		salesRecord("2024-01-01", "1", "REF001"),
		salesRecord("2024-01-01", "1", ""),
		salesRecord("2024-01-01", "1", "ref001"),
		salesRecord("2024-01-01", "1", "REF002"),
	}

	idx := NewReferenceIndex(sales)

	if idx.Size() != 2 {
		t.Errorf("Expected 2 distinct references, got %d", idx.Size())
	}

	got := idx.Lookup("Ref001")
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("Expected positions [0 2] in sales order, got %v", got)
	}
	if len(idx.Lookup("")) != 0 {
		t.Error("Empty references must never be indexed")
	}
	if len(idx.Lookup("REF999")) != 0 {
		t.Error("Expected no positions for an unknown reference")
	}
}

func TestMatchingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatchingConfig)
		wantErr bool
	}{
		{"default", func(*MatchingConfig) {}, false},
		{"zero date tolerance", func(c *MatchingConfig) { c.DateToleranceDays = 0 }, false},
		{"negative date tolerance", func(c *MatchingConfig) { c.DateToleranceDays = -1 }, true},
		{"zero amount tolerance", func(c *MatchingConfig) { c.AmountTolerance = c.AmountTolerance.Sub(c.AmountTolerance) }, true},
		{"negative amount tolerance", func(c *MatchingConfig) { c.AmountTolerance = c.AmountTolerance.Neg() }, true},
		{"negative workers", func(c *MatchingConfig) { c.MaxScoringWorkers = -2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultMatchingConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := StrictMatchingConfig().Validate(); err != nil {
		t.Errorf("strict config should be valid: %v", err)
	}
}
