package terminal

import (
	"os"
	"runtime"
	"strings"

	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/protocol"
)

// Flavor describes how to host one kind of shell.
type Flavor struct {
	Name string
	Path string

	SupportsLogin          bool
	SupportsSentinelPrompt bool
	SupportsPTY            bool
}

const (
	FlavorBash       = "bash"
	FlavorZsh        = "zsh"
	FlavorSh         = "sh"
	FlavorCmd        = "cmd"
	FlavorPowerShell = "powershell"
)

// envOverrides keep third-party tools from paging or prompting.
var envOverrides = []string{
	"TERM=xterm-256color",
	"PAGER=cat",
	"GIT_PAGER=cat",
	"MANPAGER=cat",
	"LESS=-FRX",
	"GIT_TERMINAL_PROMPT=0",
}

// DetectFlavor picks a flavor from hint (a name or path), then $SHELL, then
// the platform default.
func DetectFlavor(hint string) Flavor {
	if hint == "" {
		hint = os.Getenv("SHELL")
	}
	if hint == "" {
		if runtime.GOOS == "windows" {
			hint = FlavorPowerShell
		} else {
			hint = "/bin/bash"
		}
	}
	return flavorFor(hint)
}

func flavorFor(hint string) Flavor {
	base := hint
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(strings.ToLower(base), ".exe")

	path := hint
	if !strings.ContainsAny(hint, `/\`) {
		path = base
	}

	switch base {
	case FlavorBash:
		return Flavor{Name: FlavorBash, Path: path, SupportsLogin: true, SupportsSentinelPrompt: true, SupportsPTY: true}
	case FlavorZsh:
		return Flavor{Name: FlavorZsh, Path: path, SupportsLogin: true, SupportsSentinelPrompt: true, SupportsPTY: true}
	case FlavorCmd:
		return Flavor{Name: FlavorCmd, Path: path}
	case FlavorPowerShell, "pwsh":
		return Flavor{Name: FlavorPowerShell, Path: path}
	default:
		// dash, ash, ksh and anything unknown are driven as plain POSIX sh.
		return Flavor{Name: FlavorSh, Path: path, SupportsSentinelPrompt: true, SupportsPTY: true}
	}
}

// Args returns the arguments used to start an interactive shell. Without
// sourceRC the shell skips every startup file.
func (f Flavor) Args(login, sourceRC bool) []string {
	if !sourceRC {
		switch f.Name {
		case FlavorBash:
			return []string{"--noprofile", "--norc"}
		case FlavorZsh:
			return []string{"-f"}
		}
		return nil
	}
	if login && f.SupportsLogin {
		return []string{"-l"}
	}
	return nil
}

// BootstrapLine returns the line written once after spawn. It optionally
// sources the rc file and then installs token as the only prompt.
func (f Flavor) BootstrapLine(token protocol.Token, sourceRC bool) string {
	var parts []string
	switch f.Name {
	case FlavorBash:
		if sourceRC {
			parts = append(parts, `[ -f "$HOME/.bashrc" ] && . "$HOME/.bashrc"`)
		}
		parts = append(parts,
			`bind 'set enable-bracketed-paste off' 2>/dev/null`,
			`PROMPT_COMMAND=''`,
			`PS2=''`,
			protocol.Bootstrap("PS1", token),
		)
	case FlavorZsh:
		if sourceRC {
			parts = append(parts, `[ -f "${ZDOTDIR:-$HOME}/.zshrc" ] && . "${ZDOTDIR:-$HOME}/.zshrc"`)
		}
		parts = append(parts,
			`setopt NO_PROMPT_SP 2>/dev/null`,
			`precmd_functions=()`,
			`unset -f precmd 2>/dev/null`,
			`RPROMPT=''`,
			`PROMPT2=''`,
			protocol.Bootstrap("PROMPT", token),
		)
	default:
		if sourceRC {
			parts = append(parts, `[ -n "$ENV" ] && [ -f "$ENV" ] && . "$ENV"`)
		}
		parts = append(parts, `PS2=''`, protocol.Bootstrap("PS1", token))
	}
	return strings.Join(parts, "; ") + "\n"
}

// OneShotArgs returns the argv that runs command in a fresh child process.
func (f Flavor) OneShotArgs(command string) []string {
	switch f.Name {
	case FlavorCmd:
		return []string{f.Path, "/C", command}
	case FlavorPowerShell:
		return []string{f.Path, "-NoProfile", "-NonInteractive", "-Command", command}
	default:
		return []string{f.Path, "-c", command}
	}
}

// Environ appends the shell overrides to base. Later entries win.
func Environ(base []string) []string {
	env := make([]string, 0, len(base)+len(envOverrides))
	env = append(env, base...)
	return append(env, envOverrides...)
}
