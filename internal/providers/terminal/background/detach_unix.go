//go:build !windows

package background

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so terminal signals sent
// to the host (Ctrl-C) do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
