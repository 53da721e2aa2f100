package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is the header and data records of one extract, independent of its
// file format.
type Table struct {
	Source  string
	Header  []string
	Records [][]string
}

// ReadTable reads a CSV or the first sheet of an XLSX file. skipRows leading
// rows are discarded before the header (report banners in spreadsheet exports).
func ReadTable(path string, skipRows int) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return readCSV(path, skipRows)
	case ".xlsx":
		return readXLSX(path, skipRows)
	default:
		return nil, fmt.Errorf("unsupported extract extension %s for %s", ext, path)
	}
}

func readCSV(path string, skipRows int) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv %s: %w", path, err)
		}
		rows = append(rows, record)
	}

	return newTable(path, rows, skipRows)
}

func readXLSX(path string, skipRows int) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file %s has no sheets", path)
	}
	sheet := sheets[0]

	iter, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer iter.Close()

	var rows [][]string
	for iter.Next() {
		record, err := iter.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from %s: %w", path, err)
		}
		rows = append(rows, record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in %s: %w", path, err)
	}

	return newTable(path, rows, skipRows)
}

func newTable(path string, rows [][]string, skipRows int) (*Table, error) {
	if skipRows < 0 {
		skipRows = 0
	}
	if len(rows) <= skipRows {
		return nil, fmt.Errorf("%s: no header row after skipping %d rows", path, skipRows)
	}
	rows = rows[skipRows:]

	t := &Table{Source: path, Header: rows[0]}
	for _, r := range rows[1:] {
		if isBlank(r) {
			continue
		}
		t.Records = append(t.Records, r)
	}
	return t, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
