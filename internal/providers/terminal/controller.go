package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/protocol"
	"github.com/GriffinCanCode/agentshell/internal/shared/id"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

const (
	notFoundMarker = "command not found"
	notFoundCode   = 127
	interruptCode  = 130

	eventBuffer = 256
)

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Root         string
	Timeout      time.Duration
	ReadyTimeout time.Duration
	DrainGrace   time.Duration
	Cols         int
	Rows         int

	Spawner Spawner
	Clock   clock.WithDelayedExecution
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// command is one dispatched or queued submission.
type command struct {
	id       id.CommandID
	req      CommandRequest
	reply    chan<- submitReply
	resolved bool

	decoder *protocol.Decoder
	output  strings.Builder
	tail    string
	timer   clock.Timer

	interrupted bool
}

// Controller serializes every command for one workspace through a single
// event loop. All session state below the mutex is owned by that loop.
type Controller struct {
	opts   ControllerOptions
	clock  clock.WithDelayedExecution
	logger *zap.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	state    State
	session  *ShellSession
	gen      uint64
	seq      uint64
	cols     int
	rows     int
	resets   int
	scanner  *protocol.ReadyScanner
	ready    clock.Timer
	drain    clock.Timer
	active   *command
	draining *protocol.Decoder
	pending  *command

	mu   sync.RWMutex
	info SessionInfo
}

// NewController spawns the workspace's first session and starts the loop.
func NewController(opts ControllerOptions) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}
	if opts.DrainGrace <= 0 {
		opts.DrainGrace = 2 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Controller{
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger.With(zap.String("workspace", opts.Root)),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		cols:   opts.Cols,
		rows:   opts.Rows,
		state:  StateIdle,
	}
	c.info = SessionInfo{Root: opts.Root, WorkingDir: opts.Root, State: StateStarting.String()}

	go c.run()
	return c
}

// Submit runs a command and waits for its result. Cancelling ctx abandons
// the wait; the command keeps the session busy until the next submit
// resets it.
func (c *Controller) Submit(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	reply := make(chan submitReply, 1)
	if !c.post(CommandSubmitted{Request: req, Reply: reply}) {
		return nil, ErrSessionClosed
	}

	select {
	case r := <-reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		select {
		case r := <-reply:
			return r.result, r.err
		default:
			return nil, ErrSessionClosed
		}
	}
}

// Interrupt sends Ctrl-C to the running command.
func (c *Controller) Interrupt() error {
	reply := make(chan error, 1)
	if !c.post(InterruptRequested{Reply: reply}) {
		return ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrSessionClosed
	}
}

// Resize forwards terminal dimensions to the live session and to respawns.
func (c *Controller) Resize(cols, rows int) {
	c.post(ResizeRequested{Cols: cols, Rows: rows})
}

// Info returns a snapshot of the session.
func (c *Controller) Info() SessionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// WorkingDir returns the tracked working directory.
func (c *Controller) WorkingDir() string {
	return c.Info().WorkingDir
}

// Close kills the session and stops the loop. Outstanding submits fail
// with ErrSessionClosed.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.post(KillRequested{})
	})
	<-c.done
	return nil
}

func (c *Controller) post(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) run() {
	defer close(c.done)

	if err := c.spawn(); err != nil {
		c.logger.Error("Initial shell spawn failed", zap.Error(err))
	}
	c.publish()

	for ev := range c.events {
		if stop := c.handle(ev); stop {
			return
		}
	}
}

func (c *Controller) handle(ev Event) bool {
	switch e := ev.(type) {
	case CommandSubmitted:
		c.onSubmit(e)
	case OutputReceived:
		if e.Gen == c.gen {
			c.onOutput(e.Chunk)
		}
	case SentinelObserved:
		if e.Gen == c.gen {
			c.onSentinel()
		}
	case ProcessExited:
		if e.Gen == c.gen {
			c.onProcessExited(e.Err)
		}
	case CommandExited:
		if e.Gen == c.gen {
			c.onCommandExited(e)
		}
	case TimeoutFired:
		if e.Gen == c.gen && e.Seq == c.seq {
			c.onTimeout()
		}
	case ReadyTimeout:
		if e.Gen == c.gen && c.state == StateStarting {
			c.onReadyTimeout()
		}
	case DrainTimeout:
		if e.Gen == c.gen && c.state == StateDraining {
			c.onDrainTimeout()
		}
	case ResizeRequested:
		c.onResize(e.Cols, e.Rows)
	case InterruptRequested:
		e.Reply <- c.onInterrupt()
	case KillRequested:
		c.shutdown()
		c.publish()
		return true
	}
	c.publish()
	return false
}

func (c *Controller) spawn() error {
	c.gen++
	gen := c.gen
	token := protocol.NewToken()

	shell, err := c.opts.Spawner.Spawn(SpawnRequest{
		Dir:   c.opts.Root,
		Token: token,
		Cols:  c.cols,
		Rows:  c.rows,
		Sink: Sink{
			Output: func(chunk []byte) { c.post(OutputReceived{Gen: gen, Chunk: chunk}) },
			Exit:   func(err error) { c.post(ProcessExited{Gen: gen, Err: err}) },
			Done: func(code int, err error) {
				c.post(CommandExited{Gen: gen, ExitCode: code, Err: err})
			},
		},
	})
	if err != nil {
		c.session = nil
		c.state = StateIdle
		return fmt.Errorf("spawn shell: %w", err)
	}

	c.session = &ShellSession{
		ID:         id.NewSessionID(),
		Root:       c.opts.Root,
		WorkingDir: c.opts.Root,
		Token:      token,
		StartedAt:  c.clock.Now(),
		shell:      shell,
		gen:        gen,
	}

	if shell.Backend() == BackendPTY {
		c.state = StateStarting
		c.scanner = protocol.NewReadyScanner(token)
		c.ready = c.clock.AfterFunc(c.opts.ReadyTimeout, func() {
			c.post(ReadyTimeout{Gen: gen})
		})
	} else {
		c.state = StateIdle
		c.session.ready = true
	}

	c.logger.Info("Shell session started",
		zap.String("session_id", c.session.ID.String()),
		zap.String("backend", string(shell.Backend())),
		zap.Int("pid", shell.Pid()))
	return nil
}

// killSession tears down the live session. Its late events are dropped
// once the generation moves on.
func (c *Controller) killSession() {
	stopTimer(c.ready)
	stopTimer(c.drain)
	c.ready, c.drain = nil, nil
	c.scanner = nil
	c.draining = nil

	if c.active != nil {
		stopTimer(c.active.timer)
		c.active = nil
	}

	if c.session != nil {
		if err := c.session.shell.Kill(); err != nil {
			c.logger.Debug("Kill shell", zap.Error(err))
		}
		c.opts.Metrics.RecordSessionEnd()
		c.session = nil
	}
}

func (c *Controller) reset(reason string) {
	c.logger.Warn("Resetting shell session", zap.String("reason", reason))
	c.killSession()
	c.resets++
	c.opts.Metrics.RecordReset(reason)

	if err := c.spawn(); err != nil {
		c.logger.Error("Respawn failed", zap.Error(err))
		c.failPending(err)
	}
}

func (c *Controller) onSubmit(e CommandSubmitted) {
	cmd := &command{id: id.NewCommandID(), req: e.Request, reply: e.Reply}

	switch c.state {
	case StateClosed:
		c.resolve(cmd, nil, ErrSessionClosed)
		return
	case StateDispatching:
		prev := c.active
		c.logger.Warn("Command submitted while busy",
			zap.String("command_id", prev.id.String()))
		c.resolve(prev, &CommandResult{Output: c.partialOutput(prev), Status: StatusInterrupted}, nil)
		c.reset("forced")
	case StateStarting, StateDraining:
		c.queue(cmd)
		return
	}

	if c.session == nil {
		if err := c.spawn(); err != nil {
			c.resolve(cmd, nil, err)
			return
		}
	}

	if c.state == StateIdle {
		c.dispatch(cmd)
	} else {
		c.queue(cmd)
	}
}

// queue holds one submission until the prompt is back. A newer submission
// supersedes an older queued one.
func (c *Controller) queue(cmd *command) {
	if prev := c.pending; prev != nil {
		c.resolve(prev, &CommandResult{Status: StatusInterrupted}, nil)
	}
	c.pending = cmd
}

func (c *Controller) runPending() {
	if cmd := c.pending; cmd != nil {
		c.pending = nil
		c.dispatch(cmd)
	}
}

func (c *Controller) failPending(err error) {
	if cmd := c.pending; cmd != nil {
		c.pending = nil
		c.resolve(cmd, nil, err)
	}
}

func (c *Controller) dispatch(cmd *command) {
	s := c.session
	c.seq++
	c.active = cmd
	c.state = StateDispatching

	var err error
	if s.backend() == BackendPTY {
		cmd.decoder = protocol.NewDecoder(s.Token, !s.ready)
		err = s.shell.Send(protocol.Encode(cmd.req.Text), s.WorkingDir)
	} else {
		err = s.shell.Send(cmd.req.Text, s.WorkingDir)
	}
	s.ready = true

	if err != nil {
		c.active = nil
		c.state = StateIdle
		c.resolve(cmd, nil, fmt.Errorf("send command: %w", err))
		if s.backend() == BackendPTY {
			c.reset("write")
		}
		return
	}

	if cmd.req.Mode == ModeAgentic {
		gen, seq := c.gen, c.seq
		cmd.timer = c.clock.AfterFunc(c.opts.Timeout, func() {
			c.post(TimeoutFired{Gen: gen, Seq: seq})
		})
	}

	c.logger.Debug("Command dispatched",
		zap.String("session_id", s.ID.String()),
		zap.String("command_id", cmd.id.String()),
		zap.String("mode", string(cmd.req.Mode)))
}

func (c *Controller) onOutput(chunk []byte) {
	switch c.state {
	case StateStarting:
		if c.scanner != nil && c.scanner.Feed(chunk) {
			c.onReady()
		}
	case StateDispatching:
		cmd := c.active
		if cmd.decoder == nil {
			cmd.output.Write(chunk)
			return
		}
		if cmd.decoder.Feed(chunk) {
			c.handle(SentinelObserved{Gen: c.gen})
			return
		}
		if cmd.req.Mode == ModeInteractive && c.sawNotFound(cmd, chunk) {
			c.onNotFound()
		}
	case StateDraining:
		if c.draining != nil && c.draining.Feed(chunk) {
			c.handle(SentinelObserved{Gen: c.gen})
		}
	default:
		c.logger.Debug("Discarding output while idle", zap.Int("bytes", len(chunk)))
	}
}

// sawNotFound checks the raw stream cheaply before asking the decoder,
// which excludes the echoed command line.
func (c *Controller) sawNotFound(cmd *command, chunk []byte) bool {
	window := cmd.tail + string(chunk)
	if keep := len(notFoundMarker) - 1; len(window) > keep {
		cmd.tail = window[len(window)-keep:]
	} else {
		cmd.tail = window
	}
	return strings.Contains(window, notFoundMarker) && cmd.decoder.Contains(notFoundMarker)
}

func (c *Controller) onReady() {
	stopTimer(c.ready)
	c.ready = nil
	c.scanner = nil
	c.session.ready = true
	c.state = StateIdle
	c.runPending()
}

func (c *Controller) onReadyTimeout() {
	c.logger.Warn("Shell prompt not seen before ready timeout",
		zap.Duration("timeout", c.opts.ReadyTimeout))
	c.ready = nil
	c.scanner = nil
	c.state = StateIdle
	c.runPending()
}

func (c *Controller) onSentinel() {
	switch c.state {
	case StateDispatching:
		cmd := c.active
		out := cmd.decoder.Outcome()
		res := &CommandResult{Output: out.Output, Status: out.Status, ExitCode: out.ExitCode}
		if cmd.interrupted && res.ExitCode == nil {
			code := interruptCode
			res.ExitCode = &code
			res.Status = protocol.FailedStatus(code)
		}
		c.trackDirectory(cmd, res)
		c.finish(cmd, res)
	case StateDraining:
		stopTimer(c.drain)
		c.drain = nil
		c.draining = nil
		c.state = StateIdle
		c.runPending()
	}
}

// onNotFound answers an interactive caller early and keeps reading until
// the prompt comes back.
func (c *Controller) onNotFound() {
	cmd := c.active
	code := notFoundCode
	res := &CommandResult{Output: cmd.decoder.Output(), Status: StatusNotFound, ExitCode: &code}

	stopTimer(cmd.timer)
	c.active = nil
	c.draining = cmd.decoder
	c.state = StateDraining

	gen := c.gen
	c.drain = c.clock.AfterFunc(c.opts.DrainGrace, func() {
		c.post(DrainTimeout{Gen: gen})
	})
	c.resolve(cmd, res, nil)
}

func (c *Controller) onDrainTimeout() {
	c.drain = nil
	c.reset("drain")
}

func (c *Controller) onTimeout() {
	if c.state != StateDispatching || c.active == nil {
		return
	}
	cmd := c.active
	c.logger.Warn("Command timed out",
		zap.String("command_id", cmd.id.String()),
		zap.Duration("timeout", c.opts.Timeout))

	c.finish(cmd, &CommandResult{
		Output:   c.partialOutput(cmd),
		Status:   TimedOutStatus(c.opts.Timeout),
		TimedOut: true,
	})
	c.reset("timeout")
}

func (c *Controller) onProcessExited(err error) {
	c.logger.Info("Shell process exited", zap.Error(err))

	starting := c.state == StateStarting
	if c.state == StateDispatching && c.active != nil {
		cmd := c.active
		c.finish(cmd, &CommandResult{Output: c.partialOutput(cmd), Status: StatusShellExited})
	}

	if starting {
		// A shell that dies during bootstrap would die again on respawn.
		c.killSession()
		c.state = StateIdle
		c.failPending(fmt.Errorf("shell exited during startup: %w", errOrExit(err)))
		return
	}
	c.reset("exited")
}

func (c *Controller) onCommandExited(e CommandExited) {
	if c.state != StateDispatching || c.active == nil {
		return
	}
	cmd := c.active

	code := e.ExitCode
	if cmd.interrupted && code < 0 {
		code = interruptCode
	}
	res := &CommandResult{Output: c.partialOutput(cmd), ExitCode: &code, Status: StatusCompleted}
	if code != 0 {
		res.Status = protocol.FailedStatus(code)
	}
	c.trackDirectory(cmd, res)
	c.finish(cmd, res)
}

func (c *Controller) onResize(cols, rows int) {
	c.cols, c.rows = cols, rows
	if c.session == nil {
		return
	}
	if err := c.session.shell.Resize(cols, rows); err != nil {
		c.logger.Debug("Resize failed", zap.Error(err))
	}
}

func (c *Controller) onInterrupt() error {
	if c.session == nil {
		return nil
	}
	if c.state == StateDispatching && c.active != nil {
		c.active.interrupted = true
	}
	return c.session.shell.Interrupt()
}

func (c *Controller) shutdown() {
	if c.active != nil {
		c.resolve(c.active, nil, ErrSessionClosed)
	}
	c.failPending(ErrSessionClosed)
	c.killSession()
	c.state = StateClosed
	c.logger.Info("Shell session closed")
}

func (c *Controller) trackDirectory(cmd *command, res *CommandResult) {
	if cmd.req.Mode != ModeInteractive || res.ExitCode == nil || *res.ExitCode != 0 {
		return
	}
	if c.session.trackDirectory(cmd.req.Text) {
		c.logger.Debug("Working directory changed", zap.String("dir", c.session.WorkingDir))
	}
}

func (c *Controller) finish(cmd *command, res *CommandResult) {
	stopTimer(cmd.timer)
	cmd.timer = nil
	if c.active == cmd {
		c.active = nil
	}
	c.state = StateIdle
	c.resolve(cmd, res, nil)
}

func (c *Controller) resolve(cmd *command, res *CommandResult, err error) {
	if cmd.resolved {
		return
	}
	cmd.resolved = true
	cmd.reply <- submitReply{result: res, err: err}
}

func (c *Controller) partialOutput(cmd *command) string {
	if cmd.decoder != nil {
		return cmd.decoder.Output()
	}
	out := strings.ReplaceAll(cmd.output.String(), "\r\n", "\n")
	return strings.TrimRight(ansi.Strip(out), "\n")
}

func (c *Controller) publish() {
	info := SessionInfo{
		Root:   c.opts.Root,
		State:  c.state.String(),
		Busy:   c.state == StateDispatching,
		Resets: c.resets,
	}
	if s := c.session; s != nil {
		info.ID = s.ID.String()
		info.WorkingDir = s.WorkingDir
		info.Backend = s.backend()
		info.Pid = s.shell.Pid()
		info.StartedAt = s.StartedAt
	} else {
		info.WorkingDir = c.opts.Root
	}

	c.mu.Lock()
	c.info = info
	c.mu.Unlock()
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}

func errOrExit(err error) error {
	if err == nil {
		return errors.New("exit status 0")
	}
	return err
}
