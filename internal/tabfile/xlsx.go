package tabfile

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX reads the first sheet of an XLSX workbook and returns the
// header row and data rows as strings.
func ReadXLSX(path string) (header []string, rows [][]string, err error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "tabfile: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.Errorf("tabfile: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}

	if header == nil {
		return nil, nil, eris.Errorf("tabfile: %s is empty (no header row)", path)
	}
	return header, rows, nil
}
