package ingest

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Aliases maps a canonical column name to the ordered list of header names
// it may appear under in an input export. The first header present wins;
// downstream code only ever sees canonical names.
type Aliases map[string][]string

// merge overlays override lists onto the defaults.
func (a Aliases) merge(overrides Aliases) Aliases {
	if len(overrides) == 0 {
		return a
	}
	out := make(Aliases, len(a)+len(overrides))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// LoadAliasOverrides reads a YAML file mapping canonical column names to
// header alias lists. A missing path is not an error.
func LoadAliasOverrides(path string) (Aliases, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "ingest: read aliases file %s", path)
	}
	var out Aliases
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse aliases file %s", path)
	}
	return out, nil
}

// normalizeHeader canonicalizes a raw header cell for matching: lowercase,
// trimmed, spaces and dashes collapsed to underscores.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// Table is one header-keyed input snapshot. Column access goes through
// Bind-resolved canonical names; no downstream component re-guesses header
// spellings.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	colIdx map[string]int // normalized header -> index
	bound  map[string]int // canonical name -> index, after Bind
}

// NewTable builds a Table and indexes its header.
func NewTable(name string, header []string, rows [][]string) *Table {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if _, exists := idx[n]; !exists {
			idx[n] = i
		}
	}
	return &Table{Name: name, Header: header, Rows: rows, colIdx: idx}
}

// Bind resolves canonical column names to indexes via the alias map. Call
// once per table before any Get.
func (t *Table) Bind(aliases Aliases) {
	t.bound = make(map[string]int, len(aliases))
	for canonical, names := range aliases {
		for _, name := range names {
			if i, ok := t.colIdx[normalizeHeader(name)]; ok {
				t.bound[canonical] = i
				break
			}
		}
	}
}

// Has reports whether a canonical column was bound.
func (t *Table) Has(canonical string) bool {
	_, ok := t.bound[canonical]
	return ok
}

// Get returns the trimmed value of a bound canonical column for a row, or
// "" when the column is absent or the row is short.
func (t *Table) Get(row []string, canonical string) string {
	i, ok := t.bound[canonical]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Require verifies that every listed canonical column is bound. A missing
// column is a configuration error that aborts the run before any
// computation, naming the table and column.
func (t *Table) Require(canonicals ...string) error {
	for _, c := range canonicals {
		if !t.Has(c) {
			return eris.Errorf("ingest: table %q missing required column %q", t.Name, c)
		}
	}
	return nil
}

// ParseStats counts row dispositions for one table parse.
type ParseStats struct {
	Rows     int `json:"rows"`
	Kept     int `json:"kept"`
	Excluded int `json:"excluded"` // dropped by explicit exclude flag
	Skipped  int `json:"skipped"`  // malformed, missing key
}
