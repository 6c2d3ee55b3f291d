// Package printer provides kubectl-style terminal output helpers.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// PrintSuccess prints a success message with a check mark.
func PrintSuccess(message string) {
	_, _ = fmt.Fprintf(os.Stdout, "✓ %s\n", message)
}

// PrintError prints an error message to stderr.
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// PrintWarning prints a warning message.
func PrintWarning(message string) {
	_, _ = fmt.Fprintf(os.Stdout, "Warning: %s\n", message)
}

// PrintInfo prints a plain informational message.
func PrintInfo(message string) {
	_, _ = fmt.Fprintf(os.Stdout, "%s\n", message)
}

// TablePrinter renders aligned columns via tabwriter.
type TablePrinter struct {
	writer  *tabwriter.Writer
	headers []string
	rows    [][]string
}

// NewTablePrinter creates a table printer writing to out (stdout when nil).
func NewTablePrinter(out io.Writer) *TablePrinter {
	if out == nil {
		out = os.Stdout
	}
	return &TablePrinter{
		writer: tabwriter.NewWriter(out, 0, 0, 3, ' ', 0),
	}
}

// SetHeaders sets the table headers.
func (p *TablePrinter) SetHeaders(headers ...string) {
	p.headers = headers
}

// AddRow adds a data row to the table.
func (p *TablePrinter) AddRow(values ...any) {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprintf("%v", v)
	}
	p.rows = append(p.rows, row)
}

// Render outputs the formatted table.
func (p *TablePrinter) Render() error {
	if len(p.rows) == 0 && len(p.headers) == 0 {
		return nil
	}
	if len(p.headers) > 0 {
		_, _ = fmt.Fprintln(p.writer, strings.ToUpper(strings.Join(p.headers, "\t")))
	}
	for _, row := range p.rows {
		_, _ = fmt.Fprintln(p.writer, strings.Join(row, "\t"))
	}
	return p.writer.Flush()
}

// Truncate shortens s to maxLen runes, ellipsis included in the budget.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// FormatAge formats the time since t as a kubectl-style age string.
func FormatAge(t time.Time) string {
	duration := time.Since(t)

	days := int(duration.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	hours := int(duration.Hours())
	if hours > 0 {
		return fmt.Sprintf("%dh", hours)
	}
	minutes := int(duration.Minutes())
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", int(duration.Seconds()))
}
