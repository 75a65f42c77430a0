package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/background"
)

// DefaultMaxChars bounds each output field.
const DefaultMaxChars = 10000

// TruncationNotice is appended once to any field cut at the limit.
const TruncationNotice = "\n... [output truncated]"

// Formatter renders results with a per-field character limit.
type Formatter struct {
	maxChars int
	onTrunc  func()
}

// New creates a formatter. A non-positive limit selects DefaultMaxChars.
func New(maxChars int) *Formatter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Formatter{maxChars: maxChars}
}

// OnTruncate registers a hook called each time a field is cut.
func (f *Formatter) OnTruncate(fn func()) *Formatter {
	f.onTrunc = fn
	return f
}

// MaxChars returns the configured limit.
func (f *Formatter) MaxChars() int {
	return f.maxChars
}

// Truncate keeps the first maxChars runes of s.
func (f *Formatter) Truncate(s string) string {
	if len(s) <= f.maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == f.maxChars {
			if f.onTrunc != nil {
				f.onTrunc()
			}
			return s[:i] + TruncationNotice
		}
		n++
	}
	return s
}

// CommandResult wraps a foreground command's output and status. The
// output is expected to be truncated already.
func (f *Formatter) CommandResult(output, status string) string {
	var b strings.Builder
	b.WriteString("<terminal_command_result>\n")
	b.WriteString("<output>")
	b.WriteString(output)
	b.WriteString("</output>\n")
	b.WriteString("<status>")
	b.WriteString(status)
	b.WriteString("</status>\n")
	b.WriteString("</terminal_command_result>")
	return b.String()
}

// BackgroundStarted acknowledges a launch. A failed launch reports its error
// instead of a running status.
func (f *Formatter) BackgroundStarted(rec background.Record) string {
	var b strings.Builder
	b.WriteString("<background_process_started>\n")
	writeTag(&b, "process_id", strconv.Itoa(rec.ID))
	b.WriteByte('\n')
	writeTag(&b, "command", rec.Command)
	b.WriteByte('\n')
	writeTag(&b, "status", string(rec.Status))
	b.WriteByte('\n')
	if rec.Error != "" {
		writeTag(&b, "error", rec.Error)
		b.WriteByte('\n')
	}
	b.WriteString("</background_process_started>")
	return b.String()
}

// BackgroundInfo reports a record's current state. Stdout and stderr are
// truncated independently.
func (f *Formatter) BackgroundInfo(rec background.Record, now time.Time) string {
	var b strings.Builder
	b.WriteString("<background_process_info>\n")
	writeTag(&b, "process_id", strconv.Itoa(rec.ID))
	writeTag(&b, "command", rec.Command)
	b.WriteByte('\n')
	writeTag(&b, "start_time", rec.StartTime.UTC().Format(time.RFC3339))
	writeTag(&b, "duration_ms", strconv.FormatInt(rec.Duration(now).Milliseconds(), 10))
	b.WriteByte('\n')
	writeTag(&b, "status", string(rec.Status))
	if rec.ExitCode != nil {
		writeTag(&b, "exit_code", strconv.Itoa(*rec.ExitCode))
	}
	b.WriteByte('\n')
	writeTag(&b, "stdout", f.Truncate(rec.StdoutText()))
	writeTag(&b, "stderr", f.Truncate(rec.StderrText()))
	b.WriteByte('\n')
	b.WriteString("</background_process_info>")
	return b.String()
}

// BackgroundList renders one info envelope per record.
func (f *Formatter) BackgroundList(records []background.Record, now time.Time) string {
	if len(records) == 0 {
		return "<background_processes>\n</background_processes>"
	}
	var b strings.Builder
	b.WriteString("<background_processes>\n")
	for _, rec := range records {
		b.WriteString(f.BackgroundInfo(rec, now))
		b.WriteByte('\n')
	}
	b.WriteString("</background_processes>")
	return b.String()
}

// NotFound reports a query for an unknown process id.
func (f *Formatter) NotFound(pid int) string {
	return "<background_process_info>\n<error>No background process with ID " +
		strconv.Itoa(pid) + "</error>\n</background_process_info>"
}

func writeTag(b *strings.Builder, name, value string) {
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteByte('>')
	b.WriteString(value)
	b.WriteString("</")
	b.WriteString(name)
	b.WriteByte('>')
}
