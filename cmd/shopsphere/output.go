package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// table renders aligned columns. Widths come from lipgloss so the rupee sign
// and other multi-byte cells line up.
type table struct {
	headers []string
	rows    [][]string
	indent  string
}

// newTable starts a table. Without headers no header or divider is printed.
func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) row(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) error {
	var cols int
	for _, r := range append([][]string{t.headers}, t.rows...) {
		cols = max(cols, len(r))
	}
	widths := make([]int, cols)
	for _, r := range append([][]string{t.headers}, t.rows...) {
		for i, cell := range r {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	cell := lipgloss.NewStyle().PaddingRight(2)
	line := func(r []string) string {
		var sb strings.Builder
		sb.WriteString(t.indent)
		for i, c := range r {
			sb.WriteString(cell.Width(widths[i] + 2).Render(c))
		}
		return strings.TrimRight(sb.String(), " ")
	}

	var sb strings.Builder
	if len(t.headers) > 0 {
		sb.WriteString(line(t.headers) + "\n")
		total := 0
		for _, w := range widths {
			total += w + 2
		}
		sb.WriteString(t.indent + strings.Repeat("-", max(total-2, 0)) + "\n")
	}
	for _, r := range t.rows {
		sb.WriteString(line(r) + "\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func rupees(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

// prompt prints label and reads one trimmed line. io.EOF means the input ended.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err == io.EOF && line != "" {
		return line, nil
	}
	return line, err
}
