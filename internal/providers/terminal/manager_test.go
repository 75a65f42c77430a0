package terminal

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/background"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/format"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"
)

func newTestManager(t *testing.T, backend Backend, mutate func(*Options)) (*Manager, *fakeSpawner) {
	t.Helper()
	spawner := newFakeSpawner(backend)
	opts := Options{
		Config:  config.Default(),
		Spawner: spawner,
		Clock:   testclock.NewFakeClock(time.Now()),
		Metrics: monitoring.NewMetrics(prometheus.NewRegistry()),
	}
	if mutate != nil {
		mutate(&opts)
	}
	m := NewManager(opts)
	t.Cleanup(func() { _ = m.Close() })
	return m, spawner
}

func TestManagerOpen(t *testing.T) {
	m, _ := newTestManager(t, BackendFallback, nil)
	root := t.TempDir()

	c1, err := m.Open(root)
	require.NoError(t, err)
	c2, err := m.Open(root + "/")
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	_, err = m.Open(root + "/does-not-exist")
	assert.Error(t, err)
}

func TestManagerSubmitTruncatesOutput(t *testing.T) {
	m, spawner := newTestManager(t, BackendFallback, func(o *Options) {
		o.Config.Shell.MaxOutput = 5
	})
	root := t.TempDir()

	ch := make(chan submitOutcome, 1)
	go func() {
		res, err := m.Submit(context.Background(), root, CommandRequest{Text: "yes", Mode: ModeAgentic})
		ch <- submitOutcome{res: res, err: err}
	}()

	sh := spawner.waitShell(t)
	sh.waitSent(t)
	sh.emit("abcdefgh\n")
	sh.sink.Done(0, nil)

	res := requireNoError(t, waitOutcome(t, ch))
	assert.Equal(t, "abcde"+format.TruncationNotice, res.Output)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.OutputTruncated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.CommandsTotal.WithLabelValues("agentic", "completed")))
}

func TestManagerExecuteRendersEnvelope(t *testing.T) {
	m, spawner := newTestManager(t, BackendFallback, nil)
	root := t.TempDir()

	ch := make(chan string, 1)
	go func() {
		out, err := m.Execute(context.Background(), root, "false", ModeAgentic, false)
		assert.NoError(t, err)
		ch <- out
	}()

	sh := spawner.waitShell(t)
	sh.waitSent(t)
	sh.sink.Done(1, nil)

	select {
	case out := <-ch:
		assert.Equal(t, "<terminal_command_result>\n<output></output>\n<status>Command failed with exit code 1.</status>\n</terminal_command_result>", out)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestManagerClearUsesHook(t *testing.T) {
	cleared := 0
	m, spawner := newTestManager(t, BackendFallback, func(o *Options) {
		o.ClearScreen = func() { cleared++ }
	})

	res, err := m.Submit(context.Background(), t.TempDir(), CommandRequest{Text: "clear", Mode: ModeInteractive})
	require.NoError(t, err)
	assert.Equal(t, StatusCleared, res.Status)
	assert.Equal(t, 1, cleared)

	sh := spawner.waitShell(t)
	sh.assertNothingSent(t)
}

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("background tests use sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestManagerBackgroundDoesNotTouchSession(t *testing.T) {
	requireSh(t)
	m, spawner := newTestManager(t, BackendFallback, nil)
	root := t.TempDir()

	res, err := m.Submit(context.Background(), root, CommandRequest{Text: "echo bg", Mode: ModeAgentic, Background: true})
	require.NoError(t, err)
	assert.Equal(t, StatusBackground, res.Status)
	require.NotZero(t, res.ProcessID)

	sh := spawner.waitShell(t)
	sh.assertNothingSent(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec, err := m.Background().Wait(ctx, res.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, background.StatusCompleted, rec.Status)

	info, err := m.QueryBackground(res.ProcessID)
	require.NoError(t, err)
	assert.Contains(t, info, "<stdout>bg\n</stdout>")
	assert.Contains(t, info, "<status>completed</status><exit_code>0</exit_code>")

	list := m.ListBackground()
	assert.Contains(t, list, "<process_id>"+strconv.Itoa(res.ProcessID)+"</process_id>")
}

func TestManagerExecuteBackground(t *testing.T) {
	requireSh(t)
	m, _ := newTestManager(t, BackendFallback, nil)

	out, err := m.Execute(context.Background(), t.TempDir(), "sleep 1", ModeAgentic, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<background_process_started>\n<process_id>"))
	assert.Contains(t, out, "<command>sleep 1</command>\n<status>running</status>")
}

func TestManagerQueryBackgroundNotFound(t *testing.T) {
	m, _ := newTestManager(t, BackendFallback, nil)

	out, err := m.QueryBackground(99999999)
	assert.ErrorIs(t, err, background.ErrNotFound)
	assert.Contains(t, out, "No background process with ID 99999999")
}

func TestManagerSessions(t *testing.T) {
	m, _ := newTestManager(t, BackendFallback, nil)
	a, b := t.TempDir(), t.TempDir()

	_, err := m.Open(a)
	require.NoError(t, err)
	_, err = m.Open(b)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sessions := m.Sessions()
		return len(sessions) == 2 && sessions[0].ID != "" && sessions[1].ID != ""
	}, waitTimeout, 5*time.Millisecond)

	sessions := m.Sessions()
	assert.True(t, sessions[0].Root < sessions[1].Root)
	assert.Equal(t, BackendFallback, sessions[0].Backend)

	dir, err := m.WorkingDir(a)
	require.NoError(t, err)
	assert.NotEmpty(t, dir)

	require.NoError(t, m.CloseWorkspace(a))
	assert.Len(t, m.Sessions(), 1)
	_, err = m.WorkingDir(a)
	assert.Error(t, err)
}

func TestManagerResize(t *testing.T) {
	m, spawner := newTestManager(t, BackendPTY, nil)

	_, err := m.Open(t.TempDir())
	require.NoError(t, err)
	sh := spawner.waitShell(t)

	m.Resize(132, 43)
	require.Eventually(t, func() bool {
		sh.mu.Lock()
		defer sh.mu.Unlock()
		return sh.cols == 132 && sh.rows == 43
	}, waitTimeout, 5*time.Millisecond)

	_, err = m.Open(t.TempDir())
	require.NoError(t, err)
	other := spawner.waitShell(t)
	assert.Equal(t, 132, other.cols)
	assert.Equal(t, 43, other.rows)
}

func TestManagerInterrupt(t *testing.T) {
	m, spawner := newTestManager(t, BackendPTY, nil)
	root := t.TempDir()

	assert.Error(t, m.Interrupt(root))

	_, err := m.Open(root)
	require.NoError(t, err)
	sh := spawner.waitShell(t)

	require.NoError(t, m.Interrupt(root))
	assert.Equal(t, 1, sh.interruptCount())
}

func TestManagerClose(t *testing.T) {
	m, spawner := newTestManager(t, BackendFallback, nil)
	root := t.TempDir()

	_, err := m.Open(root)
	require.NoError(t, err)
	sh := spawner.waitShell(t)

	require.NoError(t, m.Close())
	assert.True(t, sh.isKilled())

	_, err = m.Submit(context.Background(), root, CommandRequest{Text: "ls"})
	assert.ErrorIs(t, err, ErrManagerClosed)
	_, err = m.Open(root)
	assert.ErrorIs(t, err, ErrManagerClosed)
	require.NoError(t, m.Close())
}
