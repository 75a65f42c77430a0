package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/protocol"
	"github.com/creack/pty"
	"go.uber.org/zap"
)

// Backend identifies how a shell is hosted.
type Backend string

const (
	BackendPTY      Backend = "pty"
	BackendFallback Backend = "fallback"
)

// ErrShellDead is returned when writing to a shell that has been killed.
var ErrShellDead = errors.New("shell process is not running")

const (
	// interruptByte is what the terminal sends for Ctrl-C.
	interruptByte = 0x03

	// fallbackWaitDelay bounds how long a finished child's leftover
	// descendants may hold its output pipe open.
	fallbackWaitDelay = 2 * time.Second
)

// Sink receives a shell's events. Callbacks run on the shell's own
// goroutines and must not block.
type Sink struct {
	// Output receives raw chunks in the order the OS delivers them.
	Output func(chunk []byte)
	// Exit reports that the interactive shell process is gone.
	Exit func(err error)
	// Done reports that a fallback command's child process has exited.
	Done func(exitCode int, err error)
}

// Shell is one live shell process, exclusively owned by a session.
type Shell interface {
	Backend() Backend
	Pid() int
	// Send runs text. A PTY shell receives it as typed input; the fallback
	// starts a child process in dir.
	Send(text, dir string) error
	Interrupt() error
	Resize(cols, rows int) error
	Kill() error
}

// SpawnRequest describes a shell to start.
type SpawnRequest struct {
	Dir   string
	Token protocol.Token
	Cols  int
	Rows  int
	Sink  Sink
}

// Spawner starts shells. The Supervisor is the production implementation.
type Spawner interface {
	Spawn(req SpawnRequest) (Shell, error)
}

// Supervisor starts shells under a PTY and degrades to the fallback
// backend when that is impossible.
type Supervisor struct {
	flavor   Flavor
	login    bool
	sourceRC bool
	force    bool

	breaker *resilience.Breaker[*ptyShell]
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewSupervisor creates a supervisor from the shell configuration.
func NewSupervisor(cfg config.ShellConfig, logger *zap.Logger, metrics *monitoring.Metrics) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Supervisor{
		flavor:   DetectFlavor(cfg.Path),
		login:    cfg.Login,
		sourceRC: cfg.SourceRC,
		force:    cfg.ForceFallback,
		logger:   logger,
		metrics:  metrics,
	}
	if cfg.Flavor != "" {
		f := flavorFor(cfg.Flavor)
		f.Path = s.flavor.Path
		s.flavor = f
	}
	s.breaker = resilience.New[*ptyShell](resilience.Settings{
		Name: "pty-spawn",
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Spawn breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.SetSpawnBreakerOpen(to == resilience.StateOpen)
		},
	})
	return s
}

// Flavor returns the flavor this supervisor hosts.
func (s *Supervisor) Flavor() Flavor {
	return s.flavor
}

// Spawn starts a shell in req.Dir. It only fails when req.Dir is unusable;
// PTY failures fall back to per-command child processes.
func (s *Supervisor) Spawn(req SpawnRequest) (Shell, error) {
	info, err := os.Stat(req.Dir)
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", req.Dir)
	}

	if !s.force && s.flavor.SupportsPTY {
		sh, err := s.breaker.Execute(func() (*ptyShell, error) {
			return s.spawnPTY(req)
		})
		if err == nil {
			s.metrics.RecordSpawn(string(BackendPTY))
			return sh, nil
		}
		if resilience.IsRejected(err) {
			s.logger.Debug("PTY spawn short-circuited", zap.String("dir", req.Dir))
		} else {
			s.logger.Warn("PTY spawn failed, using fallback",
				zap.String("shell", s.flavor.Path),
				zap.Error(err))
		}
	}

	s.metrics.RecordSpawn(string(BackendFallback))
	return newFallbackShell(s.flavor, req.Sink), nil
}

func (s *Supervisor) spawnPTY(req SpawnRequest) (*ptyShell, error) {
	cmd := exec.Command(s.flavor.Path, s.flavor.Args(s.login, s.sourceRC)...)
	cmd.Dir = req.Dir
	cmd.Env = Environ(os.Environ())

	ptmx, err := pty.StartWithSize(cmd, winsize(req.Cols, req.Rows))
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	sh := &ptyShell{
		cmd:        cmd,
		ptmx:       ptmx,
		sink:       req.Sink,
		readerDone: make(chan struct{}),
	}

	if _, err := io.WriteString(ptmx, s.flavor.BootstrapLine(req.Token, s.sourceRC)); err != nil {
		_ = sh.Kill()
		return nil, fmt.Errorf("failed to write bootstrap: %w", err)
	}

	go sh.readOutput()
	go sh.monitorProcess()

	s.logger.Debug("PTY shell started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("shell", s.flavor.Path),
		zap.String("dir", req.Dir))
	return sh, nil
}

func winsize(cols, rows int) *pty.Winsize {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}
}

// ptyShell is an interactive shell attached to a pseudo-terminal.
type ptyShell struct {
	cmd  *exec.Cmd
	ptmx *os.File
	sink Sink

	readerDone chan struct{}

	mu     sync.Mutex
	closed bool
}

func (p *ptyShell) Backend() Backend { return BackendPTY }

func (p *ptyShell) Pid() int { return p.cmd.Process.Pid }

func (p *ptyShell) Send(text, _ string) error {
	return p.write([]byte(text))
}

func (p *ptyShell) Interrupt() error {
	return p.write([]byte{interruptByte})
}

func (p *ptyShell) write(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrShellDead
	}
	_, err := p.ptmx.Write(b)
	return err
}

func (p *ptyShell) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	return pty.Setsize(p.ptmx, winsize(cols, rows))
}

func (p *ptyShell) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.ptmx.Close()
}

// readOutput forwards PTY output until the terminal is closed.
func (p *ptyShell) readOutput() {
	defer close(p.readerDone)

	buf := make([]byte, 4096)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 && p.sink.Output != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.sink.Output(chunk)
		}
		if err != nil {
			return
		}
	}
}

// monitorProcess waits for the shell to exit, lets the reader drain what
// is left, and reports the exit.
func (p *ptyShell) monitorProcess() {
	err := p.cmd.Wait()

	select {
	case <-p.readerDone:
	case <-time.After(200 * time.Millisecond):
	}

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		_ = p.ptmx.Close()
	}
	p.mu.Unlock()

	if p.sink.Exit != nil {
		p.sink.Exit(err)
	}
}

// fallbackShell runs each command as its own child process. It has no
// prompt, so completion is the child's exit.
type fallbackShell struct {
	flavor Flavor
	sink   Sink

	mu      sync.Mutex
	current *exec.Cmd
	dead    bool
}

func newFallbackShell(flavor Flavor, sink Sink) *fallbackShell {
	return &fallbackShell{flavor: flavor, sink: sink}
}

func (f *fallbackShell) Backend() Backend { return BackendFallback }

func (f *fallbackShell) Pid() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil && f.current.Process != nil {
		return f.current.Process.Pid
	}
	return 0
}

func (f *fallbackShell) Send(text, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dead {
		return ErrShellDead
	}
	if f.current != nil {
		return errors.New("fallback shell is busy")
	}

	argv := f.flavor.OneShotArgs(text)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = Environ(os.Environ())
	cmd.WaitDelay = fallbackWaitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("failed to start command: %w", err)
	}
	f.current = cmd

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		buf := make([]byte, 4096)
		for {
			n, err := pr.Read(buf)
			if n > 0 && f.sink.Output != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				f.sink.Output(chunk)
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		err := cmd.Wait()
		pw.Close()
		<-readerDone

		f.mu.Lock()
		if f.current == cmd {
			f.current = nil
		}
		f.mu.Unlock()

		code := 0
		if err != nil {
			code = -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
		}
		if f.sink.Done != nil {
			f.sink.Done(code, err)
		}
	}()
	return nil
}

// Interrupt kills the running child, if any.
func (f *fallbackShell) Interrupt() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil && f.current.Process != nil {
		return f.current.Process.Kill()
	}
	return nil
}

func (f *fallbackShell) Resize(int, int) error { return nil }

func (f *fallbackShell) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dead = true
	if f.current != nil && f.current.Process != nil {
		_ = f.current.Process.Kill()
	}
	return nil
}
