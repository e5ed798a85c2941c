// Package ui renders transfer progress for the non-interactive commands.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Style selects how progress is shown
type Style string

const (
	StyleBar   Style = "bar"   // redrawn progress bar
	StylePlain Style = "plain" // every tool line, no bar
	StyleJSON  Style = "json"  // one JSON object per event
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

// TransferView prints the progress of one transfer
type TransferView struct {
	output  io.Writer
	style   Style
	noColor bool
	width   int
	bar     *progressbar.ProgressBar
	title   string
}

// TransferViewOption configures a TransferView
type TransferViewOption func(*TransferView)

// WithOutput sets the output writer
func WithOutput(w io.Writer) TransferViewOption {
	return func(v *TransferView) {
		v.output = w
	}
}

// WithStyle sets the display style
func WithStyle(s Style) TransferViewOption {
	return func(v *TransferView) {
		if s != "" {
			v.style = s
		}
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) TransferViewOption {
	return func(v *TransferView) {
		v.noColor = noColor
	}
}

// WithWidth sets the bar width
func WithWidth(width int) TransferViewOption {
	return func(v *TransferView) {
		v.width = width
	}
}

// NewTransferView creates a view titled after the transfer
func NewTransferView(title string, opts ...TransferViewOption) *TransferView {
	v := &TransferView{
		output: os.Stdout,
		style:  StyleBar,
		width:  40,
		title:  title,
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.style == StyleBar {
		v.bar = progressbar.NewOptions(1000,
			progressbar.OptionSetWriter(v.output),
			progressbar.OptionSetDescription(title),
			progressbar.OptionSetWidth(v.width),
			progressbar.OptionEnableColorCodes(!v.noColor),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	return v
}

// Line shows a raw tool line. The bar style only shows errors and warnings.
func (v *TransferView) Line(line string) {
	switch v.style {
	case StylePlain:
		fmt.Fprintln(v.output, line)
	case StyleJSON:
		v.emit(map[string]any{"event": "line", "line": line})
	default:
		if isDiagnostic(line) {
			_ = v.bar.Clear()
			fmt.Fprintln(v.output, line)
		}
	}
}

// Progress updates the shown percentage
func (v *TransferView) Progress(percent float64) {
	switch v.style {
	case StyleJSON:
		v.emit(map[string]any{"event": "progress", "percent": percent})
	case StyleBar:
		_ = v.bar.Set(int(percent * 10))
	}
}

// Complete prints the summary for a finished transfer
func (v *TransferView) Complete(outputPath string, elapsed time.Duration) {
	size := ""
	if fi, err := os.Stat(outputPath); err == nil {
		size = humanize.IBytes(uint64(fi.Size()))
	}

	if v.style == StyleJSON {
		v.emit(map[string]any{"event": "complete", "output": outputPath, "size": size, "seconds": elapsed.Seconds()})
		return
	}
	if v.bar != nil {
		_ = v.bar.Finish()
		fmt.Fprintln(v.output)
	}

	details := elapsed.Round(time.Second).String()
	if size != "" {
		details = size + ", " + details
	}
	name := outputPath
	if name == "" {
		name = v.title
	}
	fmt.Fprintf(v.output, "%s %s %s (%s)\n",
		v.color(colorGreen, "✓"), v.color(colorBold, name), v.color(colorGreen, "completed"), details)
}

// Fail prints the failure for a transfer
func (v *TransferView) Fail(err error) {
	if v.style == StyleJSON {
		v.emit(map[string]any{"event": "error", "error": err.Error()})
		return
	}
	if v.bar != nil {
		_ = v.bar.Exit()
		fmt.Fprintln(v.output)
	}
	fmt.Fprintf(v.output, "%s %s %s: %v\n",
		v.color(colorYellow, "✗"), v.color(colorBold, v.title), v.color(colorYellow, "failed"), err)
}

// Note prints an informational line outside the bar
func (v *TransferView) Note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if v.style == StyleJSON {
		v.emit(map[string]any{"event": "note", "message": msg})
		return
	}
	fmt.Fprintln(v.output, msg)
}

func (v *TransferView) emit(obj map[string]any) {
	obj["title"] = v.title
	data, err := json.Marshal(obj)
	if err != nil {
		return
	}
	fmt.Fprintln(v.output, string(data))
}

func (v *TransferView) color(code, text string) string {
	if v.noColor {
		return text
	}
	return code + text + colorReset
}

func isDiagnostic(line string) bool {
	for _, prefix := range []string{"ERROR", "WARNING", "Error downloading"} {
		if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// FormatBytes formats a byte count with binary units
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// FormatCount formats an integer with thousands separators
func FormatCount(n int64) string {
	return humanize.Comma(n)
}
