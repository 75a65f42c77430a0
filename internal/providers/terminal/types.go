package terminal

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/protocol"
)

var (
	// ErrSessionClosed is returned by a controller after Close.
	ErrSessionClosed = errors.New("shell session is closed")
	// ErrManagerClosed is returned by a manager after Close.
	ErrManagerClosed = errors.New("session manager is closed")
)

// Mode identifies who issued a command.
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeAgentic     Mode = "agentic"
)

// ParseMode maps a caller-supplied string to a Mode. Unknown values are agentic.
func ParseMode(s string) Mode {
	if Mode(s) == ModeInteractive {
		return ModeInteractive
	}
	return ModeAgentic
}

// Status labels produced by the controller rather than the shell.
const (
	StatusCompleted   = protocol.CompletedStatus
	StatusUnknown     = protocol.UnknownStatus
	StatusInterrupted = "Command interrupted: the shell session was reset."
	StatusNotFound    = "Command not found."
	StatusShellExited = "Shell exited."
	StatusCleared     = "Screen cleared."
	StatusBackground  = "Background process started."
)

// TimedOutStatus is the label for a command cut off after d.
func TimedOutStatus(d time.Duration) string {
	return fmt.Sprintf("Command timed out after %s. The shell session was reset.", seconds(d))
}

// seconds renders d in whole seconds when it is one, and as a Go duration
// otherwise.
func seconds(d time.Duration) string {
	switch {
	case d == time.Second:
		return "1 second"
	case d > 0 && d%time.Second == 0:
		return fmt.Sprintf("%d seconds", int64(d/time.Second))
	default:
		return d.String()
	}
}

// CommandRequest is one submission. It is consumed once.
type CommandRequest struct {
	Text       string `json:"text"`
	Mode       Mode   `json:"mode"`
	Background bool   `json:"background"`
}

// CommandResult is produced exactly once per request.
type CommandResult struct {
	Output    string `json:"output"`
	Status    string `json:"status"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	TimedOut  bool   `json:"timed_out,omitempty"`
	ProcessID int    `json:"process_id,omitempty"`
}

// State is the controller's lifecycle state.
type State int

const (
	StateStarting State = iota
	StateIdle
	StateDispatching
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionInfo is the public view of a workspace's session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	WorkingDir string    `json:"working_dir"`
	Backend    Backend   `json:"backend"`
	State      string    `json:"state"`
	Busy       bool      `json:"busy"`
	Pid        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	Resets     int       `json:"resets"`
}
