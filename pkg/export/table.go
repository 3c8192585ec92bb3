package export

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kilianp07/evsim/core/experiment"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	cellStyle    = lipgloss.NewStyle()
)

const missingCell = "-"

func formatCell(v float64) string {
	if !finite(v) {
		return missingCell
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// RenderTable lays rows out as an aligned terminal table. Numbers are
// right-aligned with three decimals; NaN shows as "-".
func RenderTable(rows []experiment.Row) string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		line := keys(r)
		for _, v := range r.Values() {
			line = append(line, formatCell(v))
		}
		cells[i] = line
	}
	return RenderGrid(Header(), cells, len(KeyColumns))
}

// RenderGrid aligns cells under header. Columns from rightFrom on are
// right-aligned; a negative value aligns everything left.
func RenderGrid(header []string, cells [][]string, rightFrom int) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, line := range cells {
		for j, c := range line {
			if j < len(widths) {
				widths[j] = max(widths[j], lipgloss.Width(c))
			}
		}
	}

	render := func(line []string, isHeader bool) string {
		parts := make([]string, 0, len(widths))
		for j := range widths {
			c := ""
			if j < len(line) {
				c = line[j]
			}
			st := cellStyle
			switch {
			case isHeader:
				st = headerStyle
			case c == missingCell:
				st = missingStyle
			}
			st = st.Width(widths[j])
			if rightFrom >= 0 && j >= rightFrom {
				st = st.Align(lipgloss.Right)
			}
			parts = append(parts, st.Render(c))
		}
		return strings.Join(parts, "  ")
	}

	var b strings.Builder
	b.WriteString(render(header, true))
	for _, line := range cells {
		b.WriteString("\n")
		b.WriteString(render(line, false))
	}
	return b.String()
}
