// Package detector guesses which columns of an arbitrary spreadsheet export
// hold the amount, date, reference and description of a transaction.
//
// Detection is keyword based: headers are lowercased and trimmed, and the
// first header containing one of a field's keywords wins. Keywords are tried
// in priority order for each header, so a header is claimed by the first
// keyword it contains. When the amount or date column cannot be found by
// name, DetectWithSample inspects a few data rows instead.
//
// Example usage:
//
//	fields := detector.DetectWithSample(headers, rows[:5])
//	if col, ok := fields.Get(models.FieldAmount); ok {
//		fmt.Println("amount column:", col.Name)
//	}
package detector

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"ledger-reconciliation-service/internal/models"
)

// Keywords lists the header keywords per field type, highest priority first.
var Keywords = map[models.FieldType][]string{
	models.FieldAmount: {
		"monto", "valor", "pago", "importe", "total", "amount", "value", "payment",
		"debito", "credito", "cargo", "abono", "deposito", "retiro",
	},
	models.FieldDate: {
		"fecha", "date", "dia", "day", "fec",
	},
	models.FieldReference: {
		"ref", "referencia", "reference", "doc", "documento", "document", "num",
		"numero", "number", "obs", "observacion", "nota", "note", "transaccion",
		"operacion", "comprobante", "voucher", "factura", "invoice",
	},
	models.FieldDescription: {
		"descripcion", "description", "concepto", "detalle", "detail", "desc",
		"movimiento", "glosa", "comercio", "nombre", "name",
	},
}

var (
	numericChars = regexp.MustCompile(`[^\d.,\-]`)
	datePattern  = regexp.MustCompile(`\d{1,4}[-/]\d{1,2}[-/]\d{1,4}`)
)

// Options tune header matching.
type Options struct {
	// FoldAccents strips diacritics from headers before matching, so that
	// "Número" matches "numero".
	FoldAccents bool
}

// Detector maps headers to canonical fields. The zero value is ready to use.
type Detector struct {
	opts Options
}

// New creates a Detector with the given options.
func New(opts Options) *Detector {
	return &Detector{opts: opts}
}

var defaultDetector = &Detector{}

// Detect runs header-only detection with default options.
func Detect(headers []string) models.FieldMap {
	return defaultDetector.Detect(headers)
}

// DetectWithSample runs detection with the sample fallback and default options.
func DetectWithSample(headers []string, sample [][]interface{}) models.FieldMap {
	return defaultDetector.DetectWithSample(headers, sample)
}

// Detect finds each field type by header keywords only. Fields are detected
// independently, so one column may be claimed by several field types.
func (d *Detector) Detect(headers []string) models.FieldMap {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = d.normalizeHeader(h)
	}

	fields := make(models.FieldMap, len(models.FieldTypes))
	for _, fieldType := range models.FieldTypes {
		if idx := findByKeywords(normalized, Keywords[fieldType]); idx >= 0 {
			fields[fieldType] = models.DetectedField{Index: idx, Name: headers[idx]}
		}
	}
	return fields
}

// DetectWithSample extends Detect: an undetected amount column falls back to
// the first column whose sampled values are all numeric, an undetected date
// column to the first column whose sampled values all look like dates.
func (d *Detector) DetectWithSample(headers []string, sample [][]interface{}) models.FieldMap {
	fields := d.Detect(headers)
	if len(sample) == 0 {
		return fields
	}

	if _, ok := fields[models.FieldAmount]; !ok {
		if idx := findBySample(len(headers), sample, IsNumeric); idx >= 0 {
			fields[models.FieldAmount] = models.DetectedField{Index: idx, Name: headers[idx]}
		}
	}
	if _, ok := fields[models.FieldDate]; !ok {
		if idx := findBySample(len(headers), sample, LooksLikeDate); idx >= 0 {
			fields[models.FieldDate] = models.DetectedField{Index: idx, Name: headers[idx]}
		}
	}
	return fields
}

func (d *Detector) normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if d.opts.FoldAccents {
		if folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), h); err == nil {
			h = folded
		}
	}
	return h
}

func findByKeywords(headers []string, keywords []string) int {
	for i, h := range headers {
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

func findBySample(columns int, sample [][]interface{}, accept func(interface{}) bool) int {
	for col := 0; col < columns; col++ {
		ok := true
		for _, row := range sample {
			if col >= len(row) || !accept(row[col]) {
				ok = false
				break
			}
		}
		if ok {
			return col
		}
	}
	return -1
}

// IsNumeric reports whether a raw cell reads as a number once currency
// symbols, spaces and letters are stripped. A comma counts as a decimal point.
func IsNumeric(v interface{}) bool {
	s, ok := CellText(v)
	if !ok {
		return false
	}
	cleaned := strings.ReplaceAll(numericChars.ReplaceAllString(s, ""), ",", ".")
	if cleaned == "" {
		return false
	}
	_, err := strconv.ParseFloat(cleaned, 64)
	return err == nil
}

// LooksLikeDate reports whether a raw cell contains a numeric date such as
// 2024-01-15 or 15/01/2024.
func LooksLikeDate(v interface{}) bool {
	s, ok := CellText(v)
	return ok && datePattern.MatchString(s)
}

// CellText renders a raw cell as text. Nil cells report false.
func CellText(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case time.Time:
		return t.Format("2006-01-02"), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case bool:
		return strconv.FormatBool(t), true
	case interface{ String() string }:
		return t.String(), true
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	default:
		return "", false
	}
}
