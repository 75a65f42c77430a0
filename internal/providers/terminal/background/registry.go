package background

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"sync"

	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// ErrNotFound is returned when no record exists for a process id.
var ErrNotFound = errors.New("background process not found")

const readBufferSize = 4096

// Launcher turns a command line into the argv used to run it.
type Launcher func(command string) []string

// DefaultLauncher runs commands through the platform's one-shot shell.
func DefaultLauncher(command string) []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", command}
	}
	return []string{"sh", "-c", command}
}

// Options configures a Registry.
type Options struct {
	Launcher Launcher
	Env      []string
	Clock    clock.PassiveClock
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
}

type entry struct {
	record Record
	done   chan struct{}
}

// Registry tracks detached processes by OS pid.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]*entry

	launcher Launcher
	env      []string
	clock    clock.PassiveClock
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Launcher == nil {
		opts.Launcher = DefaultLauncher
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{
		entries:  make(map[int]*entry),
		launcher: opts.Launcher,
		env:      opts.Env,
		clock:    opts.Clock,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Launch starts command in dir without waiting for it. The returned record
// is already registered. A spawn failure yields an unregistered record with
// ID 0 and status error.
func (r *Registry) Launch(command, dir string) Record {
	start := r.clock.Now()
	argv := r.launcher(command)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	if r.env != nil {
		cmd.Env = r.env
	} else {
		cmd.Env = os.Environ()
	}
	detach(cmd)

	out, err := newOutputPipes(cmd)
	if err == nil {
		err = cmd.Start()
		out.closeWriters()
		if err != nil {
			out.closeReaders()
		}
	}
	if err != nil {
		end := r.clock.Now()
		r.logger.Warn("Background launch failed",
			zap.String("command", command),
			zap.String("dir", dir),
			zap.Error(err))
		r.metrics.RecordBackgroundLaunch()
		r.metrics.RecordBackgroundExit(string(StatusError))
		return Record{
			Command:   command,
			WorkDir:   dir,
			StartTime: start,
			EndTime:   &end,
			Status:    StatusError,
			Stdout:    []string{},
			Stderr:    []string{},
			Error:     err.Error(),
		}
	}

	pid := cmd.Process.Pid
	e := &entry{
		record: Record{
			ID:        pid,
			Command:   command,
			WorkDir:   dir,
			StartTime: start,
			Status:    StatusRunning,
			Stdout:    []string{},
			Stderr:    []string{},
		},
		done: make(chan struct{}),
	}

	r.mu.Lock()
	if prev, ok := r.entries[pid]; ok && prev.record.Running() {
		r.logger.Warn("Replacing live background record with reused pid", zap.Int("pid", pid))
	}
	r.entries[pid] = e
	snapshot := e.record.clone()
	r.mu.Unlock()

	r.metrics.RecordBackgroundLaunch()
	r.logger.Info("Background process started",
		zap.Int("pid", pid),
		zap.String("command", command),
		zap.String("dir", dir))

	go r.watch(e, cmd, out)
	return snapshot
}

// outputPipes are plain OS pipes rather than exec's StdoutPipe, so Wait
// returns when the process exits even if a descendant still holds the
// write ends.
type outputPipes struct {
	stdout, stderr   *os.File
	stdoutW, stderrW *os.File
}

func newOutputPipes(cmd *exec.Cmd) (*outputPipes, error) {
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		stdout.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	return &outputPipes{stdout: stdout, stderr: stderr, stdoutW: stdoutW, stderrW: stderrW}, nil
}

// closeWriters drops the parent's copies once the child holds its own.
func (p *outputPipes) closeWriters() {
	p.stdoutW.Close()
	p.stderrW.Close()
}

func (p *outputPipes) closeReaders() {
	p.stdout.Close()
	p.stderr.Close()
}

// watch reaps the process and drains both pipes concurrently. The record
// turns terminal as soon as the process exits; done closes once the output
// has also reached EOF.
func (r *Registry) watch(e *entry, cmd *exec.Cmd, out *outputPipes) {
	defer close(e.done)
	defer out.closeReaders()

	var g errgroup.Group
	g.Go(func() error { return r.drain(e, out.stdout, false) })
	g.Go(func() error { return r.drain(e, out.stderr, true) })
	g.Go(func() error {
		r.reap(e, cmd)
		return nil
	})

	if err := g.Wait(); err != nil {
		r.mu.Lock()
		if e.record.Error == "" {
			e.record.Error = err.Error()
		}
		r.mu.Unlock()
	}
}

// reap waits for the process and records its exit.
func (r *Registry) reap(e *entry, cmd *exec.Cmd) {
	waitErr := cmd.Wait()
	end := r.clock.Now()

	r.mu.Lock()
	rec := &e.record
	rec.EndTime = &end
	switch {
	case waitErr == nil:
		code := 0
		rec.ExitCode = &code
		rec.Status = StatusCompleted
	default:
		rec.Status = StatusError
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code := exitErr.ExitCode()
			rec.ExitCode = &code
		}
		rec.Error = waitErr.Error()
	}
	status := rec.Status
	pid := rec.ID
	r.mu.Unlock()

	r.metrics.RecordBackgroundExit(string(status))
	r.logger.Info("Background process exited",
		zap.Int("pid", pid),
		zap.String("status", string(status)),
		zap.Error(waitErr))
}

func (r *Registry) drain(e *entry, src io.Reader, isStderr bool) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			r.mu.Lock()
			if isStderr {
				e.record.Stderr = append(e.record.Stderr, chunk)
			} else {
				e.record.Stdout = append(e.record.Stdout, chunk)
			}
			r.mu.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// Query returns a snapshot of the record for pid.
func (r *Registry) Query(pid int) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[pid]
	if !ok {
		return Record{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	return e.record.clone(), nil
}

// List returns snapshots of all records ordered by start time.
func (r *Registry) List() []Record {
	r.mu.RLock()
	records := make([]Record, 0, len(r.entries))
	for _, e := range r.entries {
		records = append(records, e.record.clone())
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].StartTime.Equal(records[j].StartTime) {
			return records[i].ID < records[j].ID
		}
		return records[i].StartTime.Before(records[j].StartTime)
	})
	return records
}

// Remove forgets the record for pid. A running process keeps running.
func (r *Registry) Remove(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[pid]; !ok {
		return false
	}
	delete(r.entries, pid)
	return true
}

// Active counts records still running.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.record.Running() {
			n++
		}
	}
	return n
}

// Wait blocks until the process for pid has exited and its output has been
// drained, and returns its final record. A descendant that inherited the
// output pipes delays Wait until it closes them; Query already reports the
// exit status by then.
func (r *Registry) Wait(ctx context.Context, pid int) (Record, error) {
	r.mu.RLock()
	e, ok := r.entries[pid]
	r.mu.RUnlock()
	if !ok {
		return Record{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return e.record.clone(), nil
}
