package parsers

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"ledger-reconciliation-service/internal/detector"
)

func (p *Parser) parseXLSX(name string, data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{Headers: []string{}, Rows: [][]interface{}{}}, nil
	}
	sheet := sheets[0]

	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, malformed(name, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, malformed(name, err)
	}

	p.logger.WithField("sheet", sheet).Debug("Reading first worksheet")

	table := &Table{Headers: []string{}, Rows: [][]interface{}{}}
	if len(formatted) == 0 {
		return table, nil
	}

	table.Headers = trimHeaders(formatted[0])
	for i := 1; i < len(formatted); i++ {
		var rawRow []string
		if i < len(raw) {
			rawRow = raw[i]
		}
		row := make([]interface{}, len(formatted[i]))
		for j, text := range formatted[i] {
			rawText := text
			if j < len(rawRow) {
				rawText = rawRow[j]
			}
			row[j] = xlsxCell(rawText, text)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// xlsxCell types a worksheet cell. Serial numbers shown as dates become
// time.Time, other numbers float64, and everything else keeps its displayed
// text.
func xlsxCell(raw, formatted string) interface{} {
	if raw == "" && formatted == "" {
		return nil
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return formatted
	}
	if formatted != raw && displaysDate(formatted) {
		if t, err := excelize.ExcelDateToTime(n, false); err == nil {
			return t
		}
	}
	return n
}

func displaysDate(s string) bool {
	if detector.LooksLikeDate(s) {
		return true
	}
	if _, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return false
	}
	_, err := dateparse.ParseAny(s)
	return err == nil
}

func (p *Parser) parseXLS(name string, data []byte) (table *Table, err error) {
	// the BIFF reader panics on some truncated workbooks
	defer func() {
		if r := recover(); r != nil {
			table, err = nil, malformed(name, fmt.Errorf("corrupt workbook: %v", r))
		}
	}()

	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(name, err)
	}

	table = &Table{Headers: []string{}, Rows: [][]interface{}{}}
	if workbook.GetNumberSheets() == 0 {
		return table, nil
	}

	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, malformed(name, err)
	}

	for i, r := range sheet.GetRows() {
		if r == nil {
			continue
		}
		cols := r.GetCols()
		if i == 0 {
			headers := make([]string, len(cols))
			for j, c := range cols {
				headers[j] = c.GetString()
			}
			table.Headers = trimHeaders(headers)
			continue
		}

		row := make([]interface{}, len(cols))
		for j, c := range cols {
			if s := c.GetString(); s != "" {
				row[j] = s
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
