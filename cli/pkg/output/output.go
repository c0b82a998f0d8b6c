package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Out and Err receive all CLI output. They default to the colour-aware
// writers from fatih/color.
var (
	Out io.Writer = color.Output
	Err io.Writer = color.Error
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)
)

func Success(format string, a ...any) {
	successColor.Fprintf(Out, "✓ "+format+"\n", a...)
}

func Error(format string, a ...any) {
	errorColor.Fprintf(Err, "✗ "+format+"\n", a...)
}

func Info(format string, a ...any) {
	infoColor.Fprintf(Out, format+"\n", a...)
}

func Warn(format string, a ...any) {
	warnColor.Fprintf(Out, "⚠ "+format+"\n", a...)
}

func JSON(v any) error {
	enc := json.NewEncoder(Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row. Missing cells render empty and extra cells are
// dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	for i, h := range t.headers {
		headerColor.Fprint(Out, pad(h, widths[i]))
	}
	fmt.Fprintln(Out)
	for i := range t.headers {
		fmt.Fprint(Out, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(Out)
	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprint(Out, pad(cell, widths[i]))
		}
		fmt.Fprintln(Out)
	}
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", width-utf8.RuneCountInString(s)+2)
}
