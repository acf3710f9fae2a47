// Package applog is the decompiler's logging surface: plain, timestamped
// lines to stderr, colorized the way kanso-cli colorizes its own
// success/error output when stderr is a terminal and left plain otherwise
// (mattn/go-isatty), so piping a batch decompile to a file or CI log never
// picks up ANSI escapes.
package applog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var out io.Writer = os.Stderr

func init() {
	color.NoColor = !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
}

func timestamp() string {
	return time.Now().UTC().Format("15:04:05.000")
}

// Info logs a routine progress line, e.g. one request accepted or finished.
func Info(format string, args ...interface{}) {
	line := color.New(color.FgBlue).Sprint("info")
	fmt.Fprintf(out, "%s [%s] %s\n", timestamp(), line, fmt.Sprintf(format, args...))
}

// Warn logs a recoverable anomaly: a structuring fallback taken, a retried
// name collision, anything worth a human's attention that did not fail the
// request.
func Warn(format string, args ...interface{}) {
	line := color.New(color.FgYellow, color.Bold).Sprint("warn")
	fmt.Fprintf(out, "%s [%s] %s\n", timestamp(), line, fmt.Sprintf(format, args...))
}

// Error logs a failed request or fatal startup condition.
func Error(format string, args ...interface{}) {
	line := color.New(color.FgRed, color.Bold).Sprint("error")
	fmt.Fprintf(out, "%s [%s] %s\n", timestamp(), line, fmt.Sprintf(format, args...))
}

// WithRequestID prefixes every message from the returned logger with id, so
// every line produced while servicing one decompile request can be grepped
// out of an interleaved, concurrent server log.
func WithRequestID(id string) *RequestLogger {
	return &RequestLogger{id: id}
}

// RequestLogger is a request-scoped view onto the package-level logger.
type RequestLogger struct {
	id string
}

func (r *RequestLogger) Info(format string, args ...interface{}) {
	Info("[%s] %s", r.id, fmt.Sprintf(format, args...))
}

func (r *RequestLogger) Warn(format string, args ...interface{}) {
	Warn("[%s] %s", r.id, fmt.Sprintf(format, args...))
}

func (r *RequestLogger) Error(format string, args ...interface{}) {
	Error("[%s] %s", r.id, fmt.Sprintf(format, args...))
}
