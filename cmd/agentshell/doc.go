// Package main is the interactive front end for agentshell.
//
// It opens a persistent shell session rooted at a workspace and reads
// command lines with history. Plain lines run in interactive mode, so
// commands like vim or top work without a timeout. Lines starting with
// "!" are directives:
//
//	!agent <cmd>   run in agentic mode and print the result envelope
//	!bg <cmd>      launch a detached background process
//	!ps [id]       list background processes, or show one
//	!cwd           print the tracked working directory
//	!help          list directives
//	!exit          quit
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - METRICS_ADDR starts the debug server with /metrics and /healthz
//
// Usage:
//
//	./agentshell -workspace ~/src/project
//	./agentshell -dev
//
// Signals:
//   - SIGINT while a command runs: interrupt the command
//   - SIGTERM: graceful shutdown
//   - SIGWINCH: resize every session
package main
