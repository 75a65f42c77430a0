package terminal

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/protocol"
	"github.com/GriffinCanCode/agentshell/internal/shared/id"
)

// ShellSession is one live shell bound to a workspace. It is owned by the
// workspace's controller loop and never shared.
type ShellSession struct {
	ID         id.SessionID
	Root       string
	WorkingDir string
	Token      protocol.Token
	StartedAt  time.Time

	shell   Shell
	gen     uint64
	prevDir string
	ready   bool
}

func (s *ShellSession) backend() Backend {
	return s.shell.Backend()
}

// trackDirectory applies a successful interactive cd to WorkingDir.
func (s *ShellSession) trackDirectory(command string) bool {
	next, ok := resolveCd(command, s.WorkingDir, s.prevDir, homeDir())
	if !ok {
		return false
	}
	s.prevDir, s.WorkingDir = s.WorkingDir, next
	return true
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// resolveCd recognises a lone `cd [dir]` and returns the directory it
// changes to. Compound commands are not interpreted.
func resolveCd(command, cwd, prev, home string) (string, bool) {
	text := strings.TrimSpace(command)
	if strings.ContainsAny(text, ";&|<>`$()\n") {
		return "", false
	}

	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] != "cd" || len(fields) > 2 {
		return "", false
	}

	target := ""
	if len(fields) == 2 {
		target = strings.Trim(fields[1], `"'`)
	}

	switch {
	case target == "" || target == "~":
		if home == "" {
			return "", false
		}
		return home, true
	case target == "-":
		if prev == "" {
			return "", false
		}
		return prev, true
	case strings.HasPrefix(target, "~/"):
		if home == "" {
			return "", false
		}
		return filepath.Join(home, target[2:]), true
	case filepath.IsAbs(target):
		return filepath.Clean(target), true
	default:
		return filepath.Join(cwd, target), true
	}
}

// isClearCommand reports whether text only asks to clear the screen.
func isClearCommand(text string) bool {
	switch strings.TrimSpace(text) {
	case "clear", "cls", "reset":
		return true
	}
	return false
}
