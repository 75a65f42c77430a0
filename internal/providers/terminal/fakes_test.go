package terminal

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/protocol"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// fakeShell is a scripted shell. Tests play the shell's side by pushing
// output through its sink.
type fakeShell struct {
	backend Backend
	token   protocol.Token
	sink    Sink
	sentCh  chan string

	mu         sync.Mutex
	dirs       []string
	interrupts int
	killed     bool
	cols, rows int
}

func (f *fakeShell) Backend() Backend { return f.backend }

func (f *fakeShell) Pid() int { return 4242 }

func (f *fakeShell) Send(text, dir string) error {
	f.mu.Lock()
	if f.killed {
		f.mu.Unlock()
		return ErrShellDead
	}
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()

	f.sentCh <- text
	return nil
}

func (f *fakeShell) Interrupt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	return nil
}

func (f *fakeShell) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cols, f.rows = cols, rows
	return nil
}

func (f *fakeShell) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = true
	return nil
}

func (f *fakeShell) isKilled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed
}

func (f *fakeShell) interruptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interrupts
}

func (f *fakeShell) lastDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.dirs) == 0 {
		return ""
	}
	return f.dirs[len(f.dirs)-1]
}

// prompt prints the sentinel prompt.
func (f *fakeShell) prompt() {
	f.sink.Output([]byte(f.token))
}

// emit pushes raw output.
func (f *fakeShell) emit(s string) {
	f.sink.Output([]byte(s))
}

// finish plays a PTY command to completion: echo, output, phrase, prompt.
func (f *fakeShell) finish(output string, code int) {
	phrase := protocol.CompletedStatus
	if code != 0 {
		phrase = protocol.FailedStatus(code)
	}
	f.emit("echoed command line\r\n" + output + phrase + "\r\n" + string(f.token))
}

func (f *fakeShell) waitSent(t *testing.T) string {
	t.Helper()
	select {
	case text := <-f.sentCh:
		return text
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for command to be sent")
		return ""
	}
}

func (f *fakeShell) assertNothingSent(t *testing.T) {
	t.Helper()
	select {
	case text := <-f.sentCh:
		t.Fatalf("unexpected command sent: %q", text)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeSpawner struct {
	backend Backend
	spawned chan *fakeShell

	mu   sync.Mutex
	fail bool
	reqs []SpawnRequest
}

func newFakeSpawner(backend Backend) *fakeSpawner {
	return &fakeSpawner{backend: backend, spawned: make(chan *fakeShell, 16)}
}

func (s *fakeSpawner) Spawn(req SpawnRequest) (Shell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return nil, errors.New("spawn refused")
	}
	s.reqs = append(s.reqs, req)
	sh := &fakeShell{
		backend: s.backend,
		token:   req.Token,
		sink:    req.Sink,
		sentCh:  make(chan string, 16),
		cols:    req.Cols,
		rows:    req.Rows,
	}
	s.spawned <- sh
	return sh, nil
}

func (s *fakeSpawner) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *fakeSpawner) waitShell(t *testing.T) *fakeShell {
	t.Helper()
	select {
	case sh := <-s.spawned:
		return sh
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for spawn")
		return nil
	}
}

func (s *fakeSpawner) assertNoSpawn(t *testing.T) {
	t.Helper()
	select {
	case <-s.spawned:
		t.Fatal("unexpected spawn")
	case <-time.After(50 * time.Millisecond):
	}
}

type submitOutcome struct {
	res *CommandResult
	err error
}

func waitOutcome(t *testing.T, ch <-chan submitOutcome) submitOutcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for result")
		return submitOutcome{}
	}
}

func assertPending(t *testing.T, ch <-chan submitOutcome) {
	t.Helper()
	select {
	case out := <-ch:
		t.Fatalf("unexpected result: %+v", out)
	case <-time.After(50 * time.Millisecond):
	}
}

func requireNoError(t *testing.T, out submitOutcome) *CommandResult {
	t.Helper()
	require.NoError(t, out.err)
	require.NotNil(t, out.res)
	return out.res
}
