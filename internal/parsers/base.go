// Package parsers decodes uploaded ledger exports into a header row and raw
// data rows.
//
// Supported formats are chosen by file extension:
//   - .csv: delimiter sniffed from the first lines (comma, semicolon, tab or
//     pipe), UTF-8 with a Latin-1 fallback, lenient quoting
//   - .xlsx: first worksheet; numeric cells stay numeric and date cells
//     become time.Time values
//   - .xls: first worksheet of a legacy BIFF workbook, as text
//
// Parsers do not interpret columns. Detection and normalization happen in
// the detector and normalizer packages.
//
// Example usage:
//
//	parser := parsers.NewParser(nil)
//	table, err := parser.ParseFile(ctx, "bank.xlsx")
//	fields := detector.DetectWithSample(table.Headers, table.Sample(5))
package parsers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// Format is a supported input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// FormatFromName picks the format from a file name's extension.
func FormatFromName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	default:
		return "", false
	}
}

// Table is a decoded sheet: trimmed headers from the first row and every
// following row as raw cell values (string, float64, time.Time or nil).
type Table struct {
	Name    string          `json:"name"`
	Format  Format          `json:"format"`
	Headers []string        `json:"headers"`
	Rows    [][]interface{} `json:"-"`
}

// Sample returns up to n leading data rows.
func (t *Table) Sample(n int) [][]interface{} {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return t.Rows[:n]
}

func (t *Table) String() string {
	return fmt.Sprintf("%s: %d columns, %d rows", t.Name, len(t.Headers), len(t.Rows))
}

// ParseConfig holds decoding options.
type ParseConfig struct {
	// MaxBytes rejects inputs larger than this. Zero disables the check.
	MaxBytes int64
	// SniffLines is the number of leading CSV lines used for delimiter detection.
	SniffLines int
	// Delimiters are the CSV delimiter candidates, in tie-break order.
	Delimiters []rune
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		MaxBytes:   20 << 20,
		SniffLines: 5,
		Delimiters: []rune{',', ';', '\t', '|'},
	}
}

// Parser decodes files of any supported format.
type Parser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewParser creates a Parser. A nil config means DefaultParseConfig.
func NewParser(config *ParseConfig) *Parser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("parser")
	log.WithFields(logger.Fields{
		"max_bytes":   config.MaxBytes,
		"sniff_lines": config.SniffLines,
	}).Debug("Created parser")

	return &Parser{config: config, logger: log}
}

// WithLogger replaces the parser's logger.
func (p *Parser) WithLogger(l logger.Logger) *Parser {
	p.logger = l.WithComponent("parser")
	return p
}

// ParseFile opens path and decodes it.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Table, error) {
	p.logger.WithField("file_path", path).Debug("Opening input file")

	file, err := os.Open(path)
	if err != nil {
		p.logger.WithError(err).WithField("file_path", path).Error("Failed to open input file")
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError("", path, err)
	}
	defer file.Close()

	return p.Parse(ctx, filepath.Base(path), file)
}

// Parse decodes r, choosing the decoder from name's extension.
func (p *Parser) Parse(ctx context.Context, name string, r io.Reader) (*Table, error) {
	format, ok := FormatFromName(name)
	if !ok {
		return nil, errors.ParseError(errors.CodeUnsupportedFormat, name, filepath.Ext(name), nil).
			WithContext("extension", filepath.Ext(name))
	}

	data, err := p.readAll(name, r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var table *Table
	switch format {
	case FormatCSV:
		table, err = p.parseCSV(name, data)
	case FormatXLSX:
		table, err = p.parseXLSX(name, data)
	case FormatXLS:
		table, err = p.parseXLS(name, data)
	}
	if err != nil {
		p.logger.WithError(err).WithField("file", name).Warn("Failed to decode input")
		return nil, err
	}

	table.Name = name
	table.Format = format

	p.logger.WithFields(logger.Fields{
		"file":    name,
		"format":  format,
		"columns": len(table.Headers),
		"rows":    len(table.Rows),
	}).Info("Decoded input file")

	return table, nil
}

func (p *Parser) readAll(name string, r io.Reader) ([]byte, error) {
	if p.config.MaxBytes > 0 {
		r = io.LimitReader(r, p.config.MaxBytes+1)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.FileError("", name, err)
	}
	if p.config.MaxBytes > 0 && int64(buf.Len()) > p.config.MaxBytes {
		return nil, errors.FileError(errors.CodeFileTooLarge, name, nil).
			WithContext("max_bytes", p.config.MaxBytes)
	}
	return buf.Bytes(), nil
}

func malformed(name string, err error) error {
	return errors.ParseError(errors.CodeMalformedInput, name, err.Error(), err)
}

func trimHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, h := range row {
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

