package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCd(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
		ok      bool
	}{
		{"relative", "cd src", "/work/src", true},
		{"parent", "cd ..", "/", true},
		{"absolute", "cd /tmp/x/", "/tmp/x", true},
		{"home", "cd", "/home/u", true},
		{"tilde", "cd ~", "/home/u", true},
		{"tilde path", "cd ~/code", "/home/u/code", true},
		{"previous", "cd -", "/old", true},
		{"quoted", `cd "docs"`, "/work/docs", true},
		{"padded", "  cd lib  ", "/work/lib", true},
		{"compound", "cd src && ls", "", false},
		{"sequence", "cd src; ls", "", false},
		{"substitution", "cd $(pwd)", "", false},
		{"not cd", "cdx src", "", false},
		{"too many args", "cd a b", "", false},
		{"other command", "ls -la", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveCd(tt.command, "/work", "/old", "/home/u")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCdWithoutPrevious(t *testing.T) {
	_, ok := resolveCd("cd -", "/work", "", "/home/u")
	assert.False(t, ok)
}

func TestTrackDirectory(t *testing.T) {
	s := &ShellSession{WorkingDir: "/work"}

	assert.True(t, s.trackDirectory("cd /a"))
	assert.Equal(t, "/a", s.WorkingDir)
	assert.True(t, s.trackDirectory("cd -"))
	assert.Equal(t, "/work", s.WorkingDir)
	assert.False(t, s.trackDirectory("echo hi"))
	assert.Equal(t, "/work", s.WorkingDir)
}

func TestIsClearCommand(t *testing.T) {
	assert.True(t, isClearCommand("clear"))
	assert.True(t, isClearCommand(" cls "))
	assert.True(t, isClearCommand("reset"))
	assert.False(t, isClearCommand("clear && ls"))
	assert.False(t, isClearCommand("echo clear"))
}
