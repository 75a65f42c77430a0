package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		command string
		prefix  string
	}{
		{name: "plain", command: "ls -la", prefix: "eval 'ls -la'; __ags_ec=$?"},
		{name: "trailing whitespace", command: "pwd  \n", prefix: "eval 'pwd'; __ags_ec=$?"},
		{name: "background job", command: "sleep 5 &", prefix: "eval 'sleep 5 &'; __ags_ec=$?"},
		{name: "trailing semicolon", command: "cd /tmp;", prefix: "eval 'cd /tmp;'; __ags_ec=$?"},
		{name: "trailing comment", command: "false # note", prefix: "eval 'false # note'; __ags_ec=$?"},
		{name: "single quotes", command: "echo 'a b'", prefix: `eval 'echo '\''a b'\'''; __ags_ec=$?`},
		{name: "empty", command: "   ", prefix: "eval ':'; __ags_ec=$?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := Encode(tt.command)
			assert.True(t, strings.HasPrefix(line, tt.prefix), "got %q", line)
			assert.True(t, strings.HasSuffix(line, "fi\n"))
			assert.Equal(t, 1, strings.Count(line, "\n"))
		})
	}
}

func TestEncodeKeepsTrailerOutsideComment(t *testing.T) {
	command := "sh -c 'exit 3' #x"
	line := Encode(command)

	// Everything after the quoted eval argument is live shell.
	head := "eval " + quote(command)
	require.True(t, strings.HasPrefix(line, head+"; "))
	assert.NotContains(t, strings.TrimPrefix(line, head), "#")
}

func TestEncodeTrailerPrintsBothPhrases(t *testing.T) {
	line := Encode("true")
	assert.Contains(t, line, "echo '"+CompletedStatus+"'")
	assert.Contains(t, line, `echo "Command failed with exit code $__ags_ec."`)
}

func TestFailedStatus(t *testing.T) {
	assert.Equal(t, "Command failed with exit code 127.", FailedStatus(127))
}

func TestNewToken(t *testing.T) {
	a := NewToken()
	b := NewToken()

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a.String(), "__AGS_"))
	assert.True(t, strings.HasSuffix(a.String(), "__"))
	assert.Len(t, a.String(), len("__AGS_")+12+2)
}

func TestBootstrapNeverContainsToken(t *testing.T) {
	token := NewToken()
	line := Bootstrap("PS1", token)

	assert.True(t, strings.HasPrefix(line, "PS1='"))
	assert.NotContains(t, line, token.String())

	a, b := token.Halves()
	assert.Equal(t, token.String(), a+b)
}
