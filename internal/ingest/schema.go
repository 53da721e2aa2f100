package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/restockplan/internal/domain"
)

// Field is a named column of an extract. Aliases are alternative header
// spellings that mean the same field; nothing is ever matched by position.
type Field struct {
	Name     string
	Aliases  []string
	Optional bool
}

// Schema is the set of named fields an extract must provide.
type Schema struct {
	Extract string
	Fields  []Field
}

// Mapping resolves field names to column positions of one concrete header.
type Mapping struct {
	extract string
	index   map[string]int
}

// Bind matches the header against the schema and fails with a
// *domain.SchemaError listing every required field it could not find.
func (s Schema) Bind(header []string) (*Mapping, error) {
	normalized := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeColumnName(h)
		if key == "" {
			continue
		}
		if _, dup := normalized[key]; !dup {
			normalized[key] = i
		}
	}

	m := &Mapping{extract: s.Extract, index: make(map[string]int, len(s.Fields))}
	var missing []string
	for _, f := range s.Fields {
		idx := -1
		for _, name := range append([]string{f.Name}, f.Aliases...) {
			if i, ok := normalized[normalizeColumnName(name)]; ok {
				idx = i
				break
			}
		}
		if idx < 0 {
			if !f.Optional {
				missing = append(missing, f.Name)
			}
			continue
		}
		m.index[f.Name] = idx
	}

	if len(missing) > 0 {
		return nil, &domain.SchemaError{Extract: s.Extract, Missing: missing}
	}
	return m, nil
}

// Has reports whether an optional field was present in the header.
func (m *Mapping) Has(field string) bool {
	_, ok := m.index[field]
	return ok
}

// String returns the trimmed cell of field, or "" when absent.
func (m *Mapping) String(record []string, field string) string {
	idx, ok := m.index[field]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Float parses the cell of field. Empty cells are 0.
func (m *Mapping) Float(record []string, field string) (float64, error) {
	v := m.String(record, field)
	if v == "" {
		return 0, nil
	}
	f, err := parseFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s extract: field %s: %w", m.extract, field, err)
	}
	return f, nil
}

// Int parses the cell of field as an integer, accepting "2024.0" style values.
func (m *Mapping) Int(record []string, field string) (int, error) {
	f, err := m.Float(record, field)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Date parses the cell of field with the accepted layouts.
func (m *Mapping) Date(record []string, field string) (time.Time, error) {
	v := m.String(record, field)
	if v == "" {
		return time.Time{}, fmt.Errorf("%s extract: field %s: empty date", m.extract, field)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s extract: field %s: unrecognised date %q", m.extract, field, v)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02.01.2006",
	"01/02/2006",
}

// parseFloat accepts thousands separators written as commas.
func parseFloat(v string) (float64, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	v = strings.TrimSuffix(v, "%")
	return strconv.ParseFloat(v, 64)
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "", "%", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}
