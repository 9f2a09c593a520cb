package workflow

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrNoIndexColumn = errors.New("no index number column found in header row")

// normalizeHeader lowercases and collapses whitespace so header matching
// tolerates "Index No.", " index  number ", "STUDENT NAME" and friends.
func normalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

var indexHeaders = map[string]bool{
	"index number": true,
	"index no":     true,
	"index no.":    true,
}

var nameHeaders = map[string]bool{
	"name":         true,
	"student name": true,
}

// rowsFromTable turns a raw table (header row + data rows) into normalized
// engine rows. Blank index numbers are dropped here, before the engine sees
// them. Position is the 1-based sheet row, so data rows start at 2.
func rowsFromTable(table [][]string) ([]Row, error) {
	if len(table) < 2 {
		return nil, errors.New("sheet has no data rows")
	}

	indexCol, nameCol := -1, -1
	for i, h := range table[0] {
		switch {
		case indexHeaders[normalizeHeader(h)] && indexCol < 0:
			indexCol = i
		case nameHeaders[normalizeHeader(h)] && nameCol < 0:
			nameCol = i
		}
	}
	if indexCol < 0 {
		return nil, ErrNoIndexColumn
	}

	rows := make([]Row, 0, len(table)-1)
	for i, record := range table[1:] {
		var indexNumber, name string
		if indexCol < len(record) {
			indexNumber = strings.TrimSpace(record[indexCol])
		}
		if indexNumber == "" {
			continue
		}
		if nameCol >= 0 && nameCol < len(record) {
			name = strings.TrimSpace(record[nameCol])
		}
		rows = append(rows, Row{IndexNumber: indexNumber, Name: name, Position: i + 2})
	}
	return rows, nil
}

func rowsFromXlsx(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to open Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	table, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %v", err)
	}
	return rowsFromTable(table)
}

func rowsFromCsv(data []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	table, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to parse csv: %v", err)
	}
	return rowsFromTable(table)
}

// ParseUploadRows is the tabular-source collaborator: raw spreadsheet bytes in,
// ordered normalized rows out. Only .xlsx and .csv are supported.
func ParseUploadRows(filename string, data []byte) ([]Row, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return rowsFromXlsx(data)
	case strings.HasSuffix(lower, ".csv"):
		return rowsFromCsv(data)
	}
	return nil, errors.New("only .xlsx and .csv files are supported")
}
