package background

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a background process.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Record is a snapshot of one detached launch.
type Record struct {
	ID        int        `json:"process_id"`
	Command   string     `json:"command"`
	WorkDir   string     `json:"work_dir"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    Status     `json:"status"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	Stdout    []string   `json:"stdout"`
	Stderr    []string   `json:"stderr"`
	Error     string     `json:"error,omitempty"`
}

// Running reports whether the process has not exited yet.
func (r Record) Running() bool {
	return r.Status == StatusRunning
}

// Duration is the run time so far, or the total once the process has ended.
func (r Record) Duration(now time.Time) time.Duration {
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return now.Sub(r.StartTime)
}

// StdoutText joins the captured stdout chunks.
func (r Record) StdoutText() string {
	return strings.Join(r.Stdout, "")
}

// StderrText joins the captured stderr chunks.
func (r Record) StderrText() string {
	return strings.Join(r.Stderr, "")
}

func (r *Record) clone() Record {
	c := *r
	c.Stdout = append([]string(nil), r.Stdout...)
	c.Stderr = append([]string(nil), r.Stderr...)
	if r.EndTime != nil {
		end := *r.EndTime
		c.EndTime = &end
	}
	if r.ExitCode != nil {
		code := *r.ExitCode
		c.ExitCode = &code
	}
	return c
}
