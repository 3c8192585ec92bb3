package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kilianp07/evsim/core/experiment"
)

const sheetName = "summary"

// WriteXLSX writes rows to a single-sheet workbook. NaN cells are blank.
func WriteXLSX(w io.Writer, rows []experiment.Row) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	header := Header()
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &hdr); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return err
	}
	for i, r := range rows {
		vals := make([]any, 0, len(header))
		for _, k := range keys(r) {
			vals = append(vals, k)
		}
		for _, v := range r.Values() {
			if finite(v) {
				vals = append(vals, v)
			} else {
				vals = append(vals, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
			return err
		}
	}
	return f.Write(w)
}
