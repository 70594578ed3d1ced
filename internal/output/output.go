// Package output provides the memex CLI's one-line status formatting:
// plain text when the target writer isn't a terminal (or NO_COLOR is set), lipgloss
// styling otherwise.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const (
	colorGreen = "42"
	colorRed   = "196"
	colorGray  = "245"
)

// Writer prints formatted status lines for memex's CLI commands.
type Writer struct {
	out     io.Writer
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	dim     lipgloss.Style
}

// New creates a Writer. Styling is enabled only when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	if !useColor(out) {
		plain := lipgloss.NewStyle()
		return &Writer{out: out, success: plain, warning: plain, failure: plain, dim: plain}
	}

	return &Writer{
		out:     out,
		success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)).Bold(true),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
	}
}

func useColor(out io.Writer) bool {
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Status prints a message styled as informational/dim text.
func (w *Writer) Status(msg string) {
	_, _ = fmt.Fprintln(w.out, w.dim.Render(msg))
}

// Statusf is Status with fmt.Sprintf formatting.
func (w *Writer) Statusf(format string, args ...any) {
	w.Status(fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintln(w.out, w.success.Render(msg))
}

// Successf is Success with fmt.Sprintf formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintln(w.out, w.warning.Render(msg))
}

// Warningf is Warning with fmt.Sprintf formatting.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintln(w.out, w.failure.Render(msg))
}

// Errorf is Error with fmt.Sprintf formatting.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
