package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source identifies which ledger a record came from.
type Source string

const (
	SourceBank  Source = "bank"
	SourceSales Source = "sales"
)

// String returns the string representation of Source
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is one of the two known ledgers
func (s Source) IsValid() bool {
	return s == SourceBank || s == SourceSales
}

// ParseSource converts user input such as "Bank" or " sales " into a Source.
func ParseSource(value string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown source %q", value)
	}
	return s, nil
}

// Field is one header/value pair of a raw input row.
type Field struct {
	Header string
	Value  interface{}
}

// OriginalData keeps the raw row in header order. It is never interpreted
// after normalization.
type OriginalData []Field

// Get returns the raw value stored under header.
func (o OriginalData) Get(header string) (interface{}, bool) {
	for _, f := range o {
		if f.Header == header {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the row as a JSON object with keys in header order.
func (o OriginalData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Header)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("original data %q: %w", f.Header, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (o *OriginalData) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("original data must be a JSON object")
	}

	fields := OriginalData{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected original data key %v", tok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("original data %q: %w", key, err)
		}
		fields = append(fields, Field{Header: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*o = fields
	return nil
}

// TransactionRecord is a canonical bank or sales transaction.
//
// Records are treated as immutable once built by the normalizer: the engine
// and the result types only hold pointers to them.
type TransactionRecord struct {
	ID           string          `json:"id"`
	Date         *civil.Date     `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Reference    string          `json:"reference"`
	Description  string          `json:"description"`
	Source       Source          `json:"source"`
	OriginalData OriginalData    `json:"original_data"`
}

// NewTransactionRecord creates a record with a freshly generated ID.
func NewTransactionRecord(source Source, date *civil.Date, amount decimal.Decimal, reference, description string, original OriginalData) *TransactionRecord {
	return &TransactionRecord{
		ID:           uuid.NewString(),
		Date:         date,
		Amount:       amount,
		Reference:    reference,
		Description:  description,
		Source:       source,
		OriginalData: original,
	}
}

// HasDate reports whether the record carries a calendar date.
func (r *TransactionRecord) HasDate() bool {
	return r.Date != nil
}

// IsEmpty reports whether the record has neither an amount nor a date.
func (r *TransactionRecord) IsEmpty() bool {
	return r.Amount.IsZero() && r.Date == nil
}

// DateString returns the ISO date or "" when the record has no date.
func (r *TransactionRecord) DateString() string {
	if r.Date == nil {
		return ""
	}
	return r.Date.String()
}

// String returns a string representation of the record
func (r *TransactionRecord) String() string {
	return fmt.Sprintf("TransactionRecord{Source: %s, Ref: %s, Amount: %s, Date: %s}",
		r.Source, r.Reference, r.Amount.String(), r.DateString())
}

// Date builds a *civil.Date. Convenience for callers constructing records.
func Date(year int, month time.Month, day int) *civil.Date {
	d := civil.Date{Year: year, Month: month, Day: day}
	return &d
}

// MatchType records which pass produced a pair.
type MatchType string

const (
	MatchTypeExact MatchType = "exact"
	MatchTypeFuzzy MatchType = "fuzzy"
)

// String returns the string representation of MatchType
func (m MatchType) String() string {
	return string(m)
}

// Label is the human readable name used in reports and exports.
func (m MatchType) Label() string {
	switch m {
	case MatchTypeExact:
		return "Exact"
	case MatchTypeFuzzy:
		return "Fuzzy"
	default:
		return "Unknown"
	}
}

// MatchedPair links one bank record with one sales record.
type MatchedPair struct {
	ID             string             `json:"id"`
	BankRecord     *TransactionRecord `json:"bank_record"`
	SalesRecord    *TransactionRecord `json:"sales_record"`
	MatchType      MatchType          `json:"match_type"`
	Confidence     float64            `json:"confidence"`
	AmountDiff     decimal.Decimal    `json:"amount_difference"`
	DateDiff       int                `json:"date_difference"`
	ReferenceMatch bool               `json:"reference_match"`
}

// IsExact reports whether the pair came from the exact pass.
func (p *MatchedPair) IsExact() bool {
	return p.MatchType == MatchTypeExact
}

// ConfidencePercentage returns the confidence as a percentage rounded to one decimal.
func (p *MatchedPair) ConfidencePercentage() float64 {
	return decimal.NewFromFloat(p.Confidence).Shift(2).Round(1).InexactFloat64()
}

// Summary holds the aggregate counts and sums of a run.
type Summary struct {
	TotalBank            int             `json:"total_bank_records"`
	TotalSales           int             `json:"total_sales_records"`
	ExactMatches         int             `json:"exact_matches"`
	FuzzyMatches         int             `json:"fuzzy_matches"`
	TotalMatched         int             `json:"total_matched"`
	TotalBankAmount      decimal.Decimal `json:"total_bank_amount"`
	TotalSalesAmount     decimal.Decimal `json:"total_sales_amount"`
	MatchedAmount        decimal.Decimal `json:"matched_amount"`
	UnmatchedBankAmount  decimal.Decimal `json:"unmatched_bank_amount"`
	UnmatchedSalesAmount decimal.Decimal `json:"unmatched_sales_amount"`
	MatchRate            float64         `json:"match_rate"`
}

// ReconciliationResult is the immutable outcome of one reconciliation run.
type ReconciliationResult struct {
	ID             string               `json:"id"`
	MatchedPairs   []*MatchedPair       `json:"matched_pairs"`
	UnmatchedBank  []*TransactionRecord `json:"unmatched_bank"`
	UnmatchedSales []*TransactionRecord `json:"unmatched_sales"`
	Summary        Summary              `json:"summary"`
	CreatedAt      time.Time            `json:"created_at"`
}

// MatchedCount returns the number of pairs.
func (r *ReconciliationResult) MatchedCount() int {
	return len(r.MatchedPairs)
}

// UnmatchedBankCount returns the number of bank records left unmatched.
func (r *ReconciliationResult) UnmatchedBankCount() int {
	return len(r.UnmatchedBank)
}

// UnmatchedSalesCount returns the number of sales records left unmatched.
func (r *ReconciliationResult) UnmatchedSalesCount() int {
	return len(r.UnmatchedSales)
}

// MatchRate returns the summary match rate in percent.
func (r *ReconciliationResult) MatchRate() float64 {
	return r.Summary.MatchRate
}

// Difference is the bank total minus the sales total.
func (r *ReconciliationResult) Difference() decimal.Decimal {
	return r.Summary.TotalBankAmount.Sub(r.Summary.TotalSalesAmount)
}

// PairsOfType filters the matched pairs by match type, keeping their order.
func (r *ReconciliationResult) PairsOfType(t MatchType) []*MatchedPair {
	var pairs []*MatchedPair
	for _, p := range r.MatchedPairs {
		if p.MatchType == t {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// FieldType names one of the canonical fields the detector looks for.
type FieldType string

const (
	FieldAmount      FieldType = "amount"
	FieldDate        FieldType = "date"
	FieldReference   FieldType = "reference"
	FieldDescription FieldType = "description"
)

// FieldTypes lists the canonical fields in detection order.
var FieldTypes = []FieldType{FieldAmount, FieldDate, FieldReference, FieldDescription}

// DetectedField is the column chosen for a field type.
type DetectedField struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// FieldMap maps each detected field type to its column. Missing keys mean
// the field was not found.
type FieldMap map[FieldType]DetectedField

// Get returns the column for t.
func (m FieldMap) Get(t FieldType) (DetectedField, bool) {
	f, ok := m[t]
	return f, ok
}

// Missing lists the field types that were not detected, in detection order.
func (m FieldMap) Missing() []FieldType {
	var missing []FieldType
	for _, t := range FieldTypes {
		if _, ok := m[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}
