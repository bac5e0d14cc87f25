// Package ui holds the terminal output helpers of the sqlbook CLI
package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, format string, args ...any) {
	_, _ = successColor.Fprintln(w, "✓ "+fmt.Sprintf(format, args...))
}

// PrintError prints an error message
func PrintError(w io.Writer, format string, args ...any) {
	_, _ = errorColor.Fprintln(w, "✗ "+fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, format string, args ...any) {
	_, _ = warningColor.Fprintln(w, "⚠ "+fmt.Sprintf(format, args...))
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, format string, args ...any) {
	_, _ = infoColor.Fprintln(w, "ℹ "+fmt.Sprintf(format, args...))
}

// PrintTable prints a table with a header row
func PrintTable(w io.Writer, headers []string, rows [][]string) error {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)
	s, err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

// DisableColor turns off colored output (e.g. for tests or when not writing to a terminal)
func DisableColor() {
	color.NoColor = true
	pterm.DisableStyling()
}
