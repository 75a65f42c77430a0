// Package terminal keeps one long-lived shell per workspace and runs
// commands through it on behalf of a human at the terminal and an
// autonomous agent.
//
// Each workspace gets a Controller: a single event-loop goroutine that owns
// the workspace's ShellSession and serializes every command against it.
// The shell runs under a PTY with its prompt replaced by a random sentinel
// token, so the prompt's reappearance in the output stream marks
// completion. When no PTY can be allocated the session degrades to running
// each command as a child process and completion becomes the child's exit.
//
// Features:
//   - Shell state (cwd, variables, functions) persists between commands
//   - Completion and exit code recovered from the output stream, no polling
//   - Agent commands bounded by a timeout; a hung session is killed and respawned
//   - A submit while busy resets the session instead of queueing
//   - Background launches tracked by OS pid and queryable later
//   - Output bounded per field before it is handed back
//
// Architecture:
//   - Supervisor: spawns bash/zsh/sh under a PTY, or the fallback backend
//   - protocol: sentinel token, command encoding and stream decoding
//   - Controller: Starting, Idle, Dispatching, Draining, Closed
//   - background: detached process registry
//   - format: result envelopes and truncation
//   - Manager: one Controller per workspace root plus the registry
//
// Tools:
//   - terminal.execute: Run a command, optionally in the background
//   - terminal.background_status: Status and output of a background process
//   - terminal.background_list: All background processes
//   - terminal.resize: Resize every session's terminal
//   - terminal.interrupt: Send Ctrl-C to the running command
//   - terminal.session_info: Workspace session state
package terminal
