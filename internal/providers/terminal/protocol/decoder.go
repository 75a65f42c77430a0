package protocol

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var completionPattern = regexp.MustCompile(`Command (?:completed|failed with exit code (-?\d+))\.$`)

// Outcome is the decoded result of one command.
type Outcome struct {
	Output    string
	Status    string
	ExitCode  *int
	Completed bool
}

// Decoder recovers one command's output from the shell's output stream.
// It is not safe for concurrent use; the session event loop owns it.
type Decoder struct {
	token    string
	fresh    bool
	started  bool
	echoDone bool
	done     bool

	partial string
	lines   []string
}

// NewDecoder creates a decoder for a single command. fresh marks the first
// command of a new session, whose stream may still begin with the prompt.
func NewDecoder(token Token, fresh bool) *Decoder {
	return &Decoder{token: string(token), fresh: fresh}
}

// Feed consumes a chunk of raw output and reports whether the prompt has
// reappeared. Chunks after completion are ignored.
func (d *Decoder) Feed(chunk []byte) bool {
	if d.done || len(chunk) == 0 {
		return d.done
	}

	data := string(chunk)
	if !d.started {
		d.started = true
		if d.fresh {
			data = strings.TrimPrefix(data, d.token)
		}
	}

	data = d.partial + data
	d.partial = ""

	if !d.echoDone {
		idx := strings.IndexByte(data, '\n')
		if idx < 0 {
			d.partial = data
			return false
		}
		data = data[idx+1:]
		d.echoDone = true
	}

	parts := strings.Split(data, "\n")
	d.partial = parts[len(parts)-1]

	for _, raw := range parts[:len(parts)-1] {
		line := cleanLine(raw)
		if strings.Contains(line, d.token) {
			d.finish()
			return true
		}
		d.lines = append(d.lines, line)
	}

	// The prompt is printed without a trailing newline.
	if strings.Contains(cleanLine(d.partial), d.token) {
		d.finish()
		return true
	}
	return false
}

// Done reports whether the prompt has been observed.
func (d *Decoder) Done() bool { return d.done }

// Output returns everything captured so far, including an unterminated
// trailing fragment. Used for partial results on timeout.
func (d *Decoder) Output() string {
	out := strings.Join(d.lines, "\n")
	if d.echoDone && d.partial != "" {
		if tail := cleanLine(d.partial); tail != "" {
			if out != "" {
				out += "\n"
			}
			out += tail
		}
	}
	return out
}

// Contains reports whether s occurs in the captured output.
func (d *Decoder) Contains(s string) bool {
	return strings.Contains(d.Output(), s)
}

// Outcome returns the decoded result. Before completion it carries the
// partial output and Completed is false. A prompt that returns without the
// completion phrase yields UnknownStatus and a nil ExitCode.
func (d *Decoder) Outcome() Outcome {
	if !d.done {
		return Outcome{Output: d.Output()}
	}

	out := Outcome{Status: UnknownStatus, Completed: true}
	lines := d.lines

	if n := len(lines); n > 0 {
		last := lines[n-1]
		if m := completionPattern.FindStringSubmatchIndex(last); m != nil {
			code := 0
			if m[2] >= 0 {
				code, _ = strconv.Atoi(last[m[2]:m[3]])
			}
			out.ExitCode = &code
			out.Status = CompletedStatus
			if code != 0 {
				out.Status = FailedStatus(code)
			}

			lines = append([]string(nil), lines[:n-1]...)
			if prefix := strings.TrimRight(last[:m[0]], " \t"); prefix != "" {
				lines = append(lines, prefix)
			}
		}
	}

	out.Output = strings.Join(lines, "\n")
	return out
}

func (d *Decoder) finish() {
	d.done = true
	d.partial = ""
}

// cleanLine strips escape sequences and applies carriage-return overwrite,
// keeping the text a terminal would finally show on the line.
func cleanLine(raw string) string {
	line := strings.TrimRight(raw, "\r")
	if idx := strings.LastIndexByte(line, '\r'); idx >= 0 {
		line = line[idx+1:]
	}
	return ansi.Strip(line)
}

// ReadyScanner watches a new session's output for its first prompt.
type ReadyScanner struct {
	token string
	tail  string
}

// NewReadyScanner creates a scanner for token.
func NewReadyScanner(token Token) *ReadyScanner {
	return &ReadyScanner{token: string(token)}
}

// Feed consumes a chunk and reports whether the prompt has appeared.
func (r *ReadyScanner) Feed(chunk []byte) bool {
	text := r.tail + ansi.Strip(string(chunk))
	if strings.Contains(text, r.token) {
		return true
	}
	if keep := len(r.token) - 1; len(text) > keep {
		text = text[len(text)-keep:]
	}
	r.tail = text
	return false
}
