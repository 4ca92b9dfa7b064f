// Package normalizer turns raw rows from heterogeneous exports into canonical
// TransactionRecords. Field-level parse failures never abort a row: an
// unreadable date becomes nil and an unreadable amount becomes zero.
package normalizer

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"ledger-reconciliation-service/internal/detector"
	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/pkg/logger"
)

// AmountSignPolicy decides what happens to the sign of amounts that arrive
// as numeric cells. Text amounts are always made positive.
type AmountSignPolicy string

const (
	// SignPreserve keeps numeric cells signed as given.
	SignPreserve AmountSignPolicy = "preserve"
	// SignAbsolute makes every amount positive.
	SignAbsolute AmountSignPolicy = "absolute"
)

// IsValid checks if the policy is known
func (p AmountSignPolicy) IsValid() bool {
	return p == SignPreserve || p == SignAbsolute
}

// dateLayouts are tried in order; the first successful parse wins.
var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2006/1/2",
}

var (
	nonNumeric   = regexp.MustCompile(`[^\d.,\-]`)
	leadingFloat = regexp.MustCompile(`^-?(?:\d+(?:\.\d+)?|\.\d+)`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Options configure a Normalizer.
type Options struct {
	SignPolicy AmountSignPolicy
	Logger     logger.Logger
}

// Normalizer builds TransactionRecords from raw rows.
type Normalizer struct {
	signPolicy AmountSignPolicy
	logger     logger.Logger
}

// New creates a Normalizer. An empty sign policy means SignPreserve.
func New(opts Options) *Normalizer {
	if opts.SignPolicy == "" {
		opts.SignPolicy = SignPreserve
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Normalizer{
		signPolicy: opts.SignPolicy,
		logger:     opts.Logger.WithComponent("normalizer"),
	}
}

// Normalize builds one record from a raw row. Fields absent from the field
// map or beyond the end of the row are treated as empty.
func (n *Normalizer) Normalize(headers []string, row []interface{}, fields models.FieldMap, source models.Source) *models.TransactionRecord {
	return models.NewTransactionRecord(
		source,
		ParseDate(cell(row, fields, models.FieldDate)),
		n.ParseAmount(cell(row, fields, models.FieldAmount)),
		NormalizeReference(cell(row, fields, models.FieldReference)),
		description(cell(row, fields, models.FieldDescription)),
		originalData(headers, row),
	)
}

// NormalizeRows normalizes every row and drops records that have neither an
// amount nor a date. Order of the surviving records follows the input.
func (n *Normalizer) NormalizeRows(headers []string, rows [][]interface{}, fields models.FieldMap, source models.Source) []*models.TransactionRecord {
	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "normalize " + source.String(),
		Total:     int64(len(rows)),
		Logger:    n.logger,
	})

	records := make([]*models.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		progress.Increment()
		record := n.Normalize(headers, row, fields, source)
		if record.IsEmpty() {
			continue
		}
		records = append(records, record)
	}
	progress.Complete()

	if dropped := len(rows) - len(records); dropped > 0 {
		n.logger.WithFields(logger.Fields{
			"source":  source,
			"dropped": dropped,
			"kept":    len(records),
		}).Debug("Dropped rows without amount and date")
	}

	return records
}

// ParseAmount converts a raw cell into an amount using the normalizer's sign policy.
func (n *Normalizer) ParseAmount(v interface{}) decimal.Decimal {
	amount, numeric := parseAmount(v)
	if numeric && n.signPolicy == SignAbsolute {
		return amount.Abs()
	}
	return amount
}

// ParseAmount converts a raw cell into an amount, keeping the sign of numeric cells.
func ParseAmount(v interface{}) decimal.Decimal {
	amount, _ := parseAmount(v)
	return amount
}

// parseAmount reports whether v was already numeric. Text is sanitized:
// everything but digits, '.', ',' and '-' is dropped, every '.' except the
// last is treated as a thousands separator, ',' becomes the decimal point and
// the longest numeric prefix is read. Text amounts are made positive.
func parseAmount(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromUint64(rv.Uint()), true
	}

	text, ok := detector.CellText(v)
	if !ok {
		return decimal.Zero, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, false
	}

	cleaned := nonNumeric.ReplaceAllString(text, "")
	if last := strings.LastIndex(cleaned, "."); last >= 0 {
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	prefix := leadingFloat.FindString(cleaned)
	if prefix == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.Zero, false
	}
	return amount.Abs(), false
}

// ParseDate reads a calendar date from a raw cell. Date and time values are
// taken as-is; text is tried against the fixed layouts in order and then a
// lenient parser. Anything else yields nil.
func ParseDate(v interface{}) *civil.Date {
	switch t := v.(type) {
	case nil:
		return nil
	case civil.Date:
		if !t.IsValid() {
			return nil
		}
		return &t
	case *civil.Date:
		return t
	case time.Time:
		if t.IsZero() {
			return nil
		}
		d := civil.DateOf(t)
		return &d
	case string:
		return parseDateText(t)
	default:
		return nil
	}
}

func parseDateText(s string) *civil.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, attempt := range dateAttempts {
		if d, ok := attempt(s); ok {
			return &d
		}
	}
	return nil
}

type dateAttempt func(string) (civil.Date, bool)

var dateAttempts = func() []dateAttempt {
	attempts := make([]dateAttempt, 0, len(dateLayouts)+1)
	for _, layout := range dateLayouts {
		attempts = append(attempts, layoutAttempt(layout))
	}
	return append(attempts, lenientAttempt)
}()

func layoutAttempt(layout string) dateAttempt {
	return func(s string) (civil.Date, bool) {
		t, err := time.Parse(layout, s)
		if err != nil {
			return civil.Date{}, false
		}
		return civil.DateOf(t), true
	}
}

func lenientAttempt(s string) (civil.Date, bool) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

// NormalizeReference uppercases, trims and collapses internal whitespace.
func NormalizeReference(v interface{}) string {
	s, ok := detector.CellText(v)
	if !ok {
		return ""
	}
	return strings.ToUpper(whitespace.ReplaceAllString(strings.TrimSpace(s), " "))
}

func description(v interface{}) string {
	s, _ := detector.CellText(v)
	return strings.TrimSpace(s)
}

func cell(row []interface{}, fields models.FieldMap, ft models.FieldType) interface{} {
	f, ok := fields.Get(ft)
	if !ok || f.Index < 0 || f.Index >= len(row) {
		return nil
	}
	return row[f.Index]
}

func originalData(headers []string, row []interface{}) models.OriginalData {
	data := make(models.OriginalData, len(headers))
	for i, h := range headers {
		var v interface{}
		if i < len(row) {
			v = row[i]
		}
		data[i] = models.Field{Header: h, Value: v}
	}
	return data
}
