package background

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("registry tests use sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewRegistry(Options{Metrics: monitoring.NewMetrics(prometheus.NewRegistry())})
}

func waitFor(t *testing.T, r *Registry, pid int) Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec, err := r.Wait(ctx, pid)
	require.NoError(t, err)
	return rec
}

func TestLaunchRegistersBeforeReturn(t *testing.T) {
	r := newTestRegistry(t)

	rec := r.Launch("true", t.TempDir())
	require.NotZero(t, rec.ID)

	got, err := r.Query(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "true", got.Command)
	assert.Len(t, r.List(), 1)
}

func TestLaunchCapturesOutputAndExit(t *testing.T) {
	r := newTestRegistry(t)

	rec := r.Launch("echo out; echo err 1>&2", t.TempDir())
	assert.Equal(t, StatusRunning, rec.Status)
	assert.Nil(t, rec.EndTime)

	final := waitFor(t, r, rec.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	require.NotNil(t, final.ExitCode)
	assert.Equal(t, 0, *final.ExitCode)
	require.NotNil(t, final.EndTime)
	assert.Equal(t, "out\n", final.StdoutText())
	assert.Equal(t, "err\n", final.StderrText())
}

func TestLaunchNonZeroExitIsError(t *testing.T) {
	r := newTestRegistry(t)

	rec := r.Launch("exit 3", t.TempDir())
	final := waitFor(t, r, rec.ID)

	assert.Equal(t, StatusError, final.Status)
	require.NotNil(t, final.ExitCode)
	assert.Equal(t, 3, *final.ExitCode)
	assert.NotNil(t, final.EndTime)
}

func TestExitReportedWhileDescendantHoldsOutput(t *testing.T) {
	r := newTestRegistry(t)

	// The sleep inherits stdout and outlives its parent shell
	rec := r.Launch("sleep 5 & echo launched", t.TempDir())

	require.Eventually(t, func() bool {
		got, err := r.Query(rec.ID)
		return err == nil && !got.Running()
	}, time.Second, 10*time.Millisecond)

	got, err := r.Query(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 0, *got.ExitCode)
	assert.NotNil(t, got.EndTime)
	assert.Zero(t, r.Active())

	// Output already written is captured even though the pipe stays open
	assert.Eventually(t, func() bool {
		got, _ := r.Query(rec.ID)
		return got.StdoutText() == "launched\n"
	}, time.Second, 10*time.Millisecond)
}

func TestLaunchRunsInDirectory(t *testing.T) {
	r := newTestRegistry(t)
	dir := t.TempDir()

	rec := r.Launch("pwd", dir)
	final := waitFor(t, r, rec.ID)

	assert.Contains(t, final.StdoutText(), dir[len(dir)-8:])
}

func TestLaunchDoesNotBlock(t *testing.T) {
	r := newTestRegistry(t)

	start := time.Now()
	rec := r.Launch("sleep 2", t.TempDir())
	assert.Less(t, time.Since(start), time.Second)

	got, err := r.Query(rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Running())
	assert.Equal(t, 1, r.Active())

	final := waitFor(t, r, rec.ID)
	assert.False(t, final.Running())
	assert.Equal(t, 0, r.Active())
}

func TestLaunchSpawnFailure(t *testing.T) {
	r := newTestRegistry(t)

	rec := r.Launch("true", "/nonexistent/dir/for/launch")
	assert.Zero(t, rec.ID)
	assert.Equal(t, StatusError, rec.Status)
	assert.NotEmpty(t, rec.Error)
	assert.NotNil(t, rec.EndTime)
	assert.Empty(t, r.List())
}

func TestQueryNotFound(t *testing.T) {
	r := NewRegistry(Options{})

	_, err := r.Query(424242)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = r.Wait(context.Background(), 424242)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRemove(t *testing.T) {
	r := newTestRegistry(t)

	rec := r.Launch("true", t.TempDir())
	waitFor(t, r, rec.ID)

	assert.True(t, r.Remove(rec.ID))
	assert.False(t, r.Remove(rec.ID))
	_, err := r.Query(rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotsAreIndependent(t *testing.T) {
	r := newTestRegistry(t)

	rec := r.Launch("echo hi", t.TempDir())
	final := waitFor(t, r, rec.ID)
	final.Stdout[0] = "mutated"

	again, err := r.Query(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", again.StdoutText())
}

func TestRecordDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)

	running := Record{StartTime: start, Status: StatusRunning}
	assert.Equal(t, 3*time.Second, running.Duration(start.Add(3*time.Second)))

	done := Record{StartTime: start, EndTime: &end, Status: StatusCompleted}
	assert.Equal(t, 1500*time.Millisecond, done.Duration(start.Add(time.Hour)))
}
