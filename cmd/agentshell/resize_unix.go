//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/agentshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal"
)

// watchResize propagates SIGWINCH to every session until the returned func is called.
func watchResize(manager *terminal.Manager, logger *logging.Logger) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGWINCH)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigs:
				cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
				if err != nil {
					logger.Debug("Terminal size unavailable", zap.Error(err))
					continue
				}
				manager.Resize(cols, rows)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
