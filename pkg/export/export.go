// Package export writes sweep summaries in the formats consumed by
// notebooks and spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/evsim/core/experiment"
)

// Format names an output encoding.
type Format string

const (
	FormatTable   Format = "table"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// Formats lists the supported formats.
var Formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatXLSX, FormatParquet}

// ParseFormat matches s case-insensitively against Formats.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool { return f == FormatXLSX || f == FormatParquet }

// KeyColumns identify a summary row.
var KeyColumns = []string{"window", "start", "end", "scenario", "algorithm"}

// Header returns the key columns followed by experiment.Columns.
func Header() []string {
	h := make([]string, 0, len(KeyColumns)+len(experiment.Columns))
	h = append(h, KeyColumns...)
	return append(h, experiment.Columns...)
}

func keys(r experiment.Row) []string {
	return []string{r.Window, r.Start, r.End, r.Scenario, r.Algorithm}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Write encodes rows to w in format f.
func Write(w io.Writer, f Format, rows []experiment.Row) error {
	switch f {
	case FormatTable:
		_, err := io.WriteString(w, RenderTable(rows)+"\n")
		return err
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	case FormatParquet:
		return WriteParquet(w, rows)
	}
	return fmt.Errorf("unknown format %q", f)
}

// WriteCSV writes rows with a header. NaN cells are left empty.
func WriteCSV(w io.Writer, rows []experiment.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range rows {
		rec := keys(r)
		for _, v := range r.Values() {
			if finite(v) {
				rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rows as an array of objects. NaN becomes null.
func WriteJSON(w io.Writer, rows []experiment.Row) error {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := make(map[string]any, len(KeyColumns)+len(experiment.Columns)+1)
		for j, k := range keys(r) {
			m[KeyColumns[j]] = k
		}
		for j, v := range r.Values() {
			if finite(v) {
				m[experiment.Columns[j]] = v
			} else {
				m[experiment.Columns[j]] = nil
			}
		}
		m["missing"] = r.Missing
		out[i] = m
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
