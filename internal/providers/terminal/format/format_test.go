package format

import (
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/background"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	f := New(5)

	assert.Equal(t, "abc", f.Truncate("abc"))
	assert.Equal(t, "abcde", f.Truncate("abcde"))
	assert.Equal(t, "abcde"+TruncationNotice, f.Truncate("abcdefgh"))
}

func TestTruncateCountsRunes(t *testing.T) {
	f := New(3)

	assert.Equal(t, "héé", f.Truncate("héé"))
	assert.Equal(t, "日本語"+TruncationNotice, f.Truncate("日本語です"))
}

func TestTruncateNoticeAppearsOnce(t *testing.T) {
	calls := 0
	f := New(10).OnTruncate(func() { calls++ })

	out := f.Truncate(strings.Repeat("x", 100))
	assert.Equal(t, 1, strings.Count(out, "[output truncated]"))
	assert.Equal(t, 1, calls)
}

func TestDefaultLimit(t *testing.T) {
	f := New(0)
	assert.Equal(t, DefaultMaxChars, f.MaxChars())

	out := f.Truncate(strings.Repeat("a", 25000))
	assert.Equal(t, DefaultMaxChars+len(TruncationNotice), len(out))
	assert.True(t, strings.HasSuffix(out, TruncationNotice))
}

func TestCommandResult(t *testing.T) {
	f := New(100)

	got := f.CommandResult("hello\n", "Command completed.")
	assert.Equal(t, "<terminal_command_result>\n<output>hello\n</output>\n<status>Command completed.</status>\n</terminal_command_result>", got)
}

func TestBackgroundStarted(t *testing.T) {
	f := New(100)
	rec := background.Record{ID: 42, Command: "sleep 5", Status: background.StatusRunning}

	got := f.BackgroundStarted(rec)
	assert.Equal(t, "<background_process_started>\n<process_id>42</process_id>\n<command>sleep 5</command>\n<status>running</status>\n</background_process_started>", got)
}

func TestBackgroundStartedFailure(t *testing.T) {
	f := New(100)
	rec := background.Record{Command: "x", Status: background.StatusError, Error: "boom"}

	got := f.BackgroundStarted(rec)
	assert.Contains(t, got, "<process_id>0</process_id>")
	assert.Contains(t, got, "<status>error</status>")
	assert.Contains(t, got, "<error>boom</error>")
}

func TestBackgroundInfo(t *testing.T) {
	f := New(4)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)
	code := 1
	rec := background.Record{
		ID:        7,
		Command:   "make",
		StartTime: start,
		EndTime:   &end,
		Status:    background.StatusError,
		ExitCode:  &code,
		Stdout:    []string{"build", "ing"},
		Stderr:    []string{"err"},
	}

	got := f.BackgroundInfo(rec, end.Add(time.Minute))
	want := "<background_process_info>\n" +
		"<process_id>7</process_id><command>make</command>\n" +
		"<start_time>2024-05-01T12:00:00Z</start_time><duration_ms>2000</duration_ms>\n" +
		"<status>error</status><exit_code>1</exit_code>\n" +
		"<stdout>buil" + TruncationNotice + "</stdout><stderr>err</stderr>\n" +
		"</background_process_info>"
	assert.Equal(t, want, got)
}

func TestBackgroundInfoRunningOmitsExitCode(t *testing.T) {
	f := New(100)
	start := time.Now()
	rec := background.Record{ID: 3, Command: "sleep 9", StartTime: start, Status: background.StatusRunning}

	got := f.BackgroundInfo(rec, start.Add(500*time.Millisecond))
	assert.NotContains(t, got, "<exit_code>")
	assert.Contains(t, got, "<duration_ms>500</duration_ms>")
}

func TestBackgroundList(t *testing.T) {
	f := New(100)
	now := time.Now()

	assert.Equal(t, "<background_processes>\n</background_processes>", f.BackgroundList(nil, now))

	got := f.BackgroundList([]background.Record{{ID: 1, StartTime: now}, {ID: 2, StartTime: now}}, now)
	assert.Equal(t, 2, strings.Count(got, "<background_process_info>"))
}
