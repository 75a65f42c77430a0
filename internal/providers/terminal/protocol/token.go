package protocol

import (
	"strings"

	"github.com/google/uuid"
)

const tokenPrefix = "__AGS_"

// Token is the sentinel written into the shell prompt.
type Token string

// NewToken returns a token that does not occur in ordinary shell output.
func NewToken() Token {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return Token(tokenPrefix + hex[:12] + "__")
}

// Halves splits the token so that it can be written as two adjacent quoted
// strings. The shell concatenates them, but the echoed bootstrap line never
// contains the token itself.
func (t Token) Halves() (string, string) {
	mid := len(t) / 2
	return string(t[:mid]), string(t[mid:])
}

func (t Token) String() string { return string(t) }
