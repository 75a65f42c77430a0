package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/GriffinCanCode/agentshell/internal/providers/terminal"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/background"
)

const helpText = `Directives:
  !agent <cmd>   run in agentic mode and print the result envelope
  !bg <cmd>      launch a detached background process
  !ps [id]       list background processes, or show one
  !cwd           print the tracked working directory
  !help          show this help
  !exit          quit
Anything else runs in the shell.
`

type repl struct {
	manager *terminal.Manager
	root    string
	home    string
	out     io.Writer
	rl      *readline.Instance
}

func newREPL(manager *terminal.Manager, root string, out io.Writer) (*repl, error) {
	home, _ := os.UserHomeDir()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "$ ",
		HistoryFile:       filepath.Join(home, ".agentshell_history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            out,
		Stderr:            os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize readline: %w", err)
	}

	return &repl{
		manager: manager,
		root:    root,
		home:    home,
		out:     out,
		rl:      rl,
	}, nil
}

func (r *repl) loop(ctx context.Context) error {
	defer r.rl.Close()

	for ctx.Err() == nil {
		r.rl.SetPrompt(r.prompt())

		line, err := r.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		quit, err := r.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return nil
}

func (r *repl) prompt() string {
	wd, err := r.manager.WorkingDir(r.root)
	if err != nil {
		wd = r.root
	}
	return shortPath(wd, r.home) + " $ "
}

func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	name, arg := parseLine(line)

	switch name {
	case "":
		return false, r.interactive(ctx, line)

	case "agent", "bg":
		if arg == "" {
			return false, fmt.Errorf("!%s needs a command", name)
		}
		var envelope string
		err := r.withInterrupt(func() error {
			var err error
			envelope, err = r.manager.Execute(ctx, r.root, arg, terminal.ModeAgentic, name == "bg")
			return err
		})
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, envelope)

	case "ps":
		if arg == "" {
			fmt.Fprintln(r.out, r.manager.ListBackground())
			return false, nil
		}
		pid, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("process id must be a number: %q", arg)
		}
		info, err := r.manager.QueryBackground(pid)
		if err != nil && !errors.Is(err, background.ErrNotFound) {
			return false, err
		}
		fmt.Fprintln(r.out, info)

	case "cwd":
		wd, err := r.manager.WorkingDir(r.root)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, wd)

	case "help":
		fmt.Fprint(r.out, helpText)

	case "exit", "quit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown directive !%s (try !help)", name)
	}
	return false, nil
}

func (r *repl) interactive(ctx context.Context, line string) error {
	var res *terminal.CommandResult
	err := r.withInterrupt(func() error {
		var err error
		res, err = r.manager.Submit(ctx, r.root, terminal.CommandRequest{
			Text: line,
			Mode: terminal.ModeInteractive,
		})
		return err
	})
	if err != nil {
		return err
	}

	if res.Output != "" {
		fmt.Fprint(r.out, res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			fmt.Fprintln(r.out)
		}
	}
	if res.Status != terminal.StatusCompleted && res.Status != terminal.StatusCleared {
		fmt.Fprintln(r.out, res.Status)
	}
	return nil
}

// withInterrupt forwards SIGINT to the workspace's running command while fn runs.
func (r *repl) withInterrupt(fn func() error) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-sigs:
				_ = r.manager.Interrupt(r.root)
			case <-done:
				return
			}
		}
	}()

	return fn()
}

// parseLine splits a "!name arg" directive. Lines without the prefix return an empty name.
func parseLine(line string) (name, arg string) {
	if !strings.HasPrefix(line, "!") {
		return "", line
	}
	name, arg, _ = strings.Cut(strings.TrimPrefix(line, "!"), " ")
	return name, strings.TrimSpace(arg)
}

func shortPath(path, home string) string {
	if home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if rel, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return "~" + string(filepath.Separator) + rel
	}
	return path
}
