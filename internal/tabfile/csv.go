// Package tabfile reads header-keyed tabular snapshots from CSV and XLSX
// files on disk. It is the only place the engine touches input files.
package tabfile

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadCSV reads an entire CSV file and returns the header row and data
// rows. Fields are trimmed; rows may have variable field counts (short
// rows are padded by the column accessors downstream).
func ReadCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "tabfile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return parseCSV(f, path)
}

func parseCSV(r io.Reader, name string) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var header []string
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "tabfile: read csv row in %s", name)
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		if header == nil {
			header = record
			continue
		}
		rows = append(rows, record)
	}

	if header == nil {
		return nil, nil, eris.Errorf("tabfile: %s is empty (no header row)", name)
	}
	return header, rows, nil
}
