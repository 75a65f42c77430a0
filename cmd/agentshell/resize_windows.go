//go:build windows

package main

import (
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal"
)

// watchResize is a no-op: Windows sessions use the fallback backend, which has no terminal size.
func watchResize(*terminal.Manager, *logging.Logger) func() {
	return func() {}
}
