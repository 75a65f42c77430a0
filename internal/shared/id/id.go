// Package id provides ULID generation for sessions, commands and workspaces.
//
// IDs are prefixed so that log lines stay readable:
//   - sess_<ULID>: one shell session (a respawn gets a new ID)
//   - cmd_<ULID>:  one submitted command
//   - ws_<ULID>:   one opened workspace
//
// IDs of one kind sort in creation order, including within a millisecond.
package id

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a shell session
type SessionID string

// CommandID identifies a submitted command
type CommandID string

// WorkspaceID identifies an opened workspace
type WorkspaceID string

const (
	SessionPrefix   = "sess"
	CommandPrefix   = "cmd"
	WorkspacePrefix = "ws"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

func generate(prefix string) string {
	mu.Lock()
	defer mu.Unlock()
	return prefix + "_" + ulid.MustNew(ulid.Now(), entropy).String()
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(generate(SessionPrefix))
}

// NewCommandID generates a new command ID
func NewCommandID() CommandID {
	return CommandID(generate(CommandPrefix))
}

// NewWorkspaceID generates a new workspace ID
func NewWorkspaceID() WorkspaceID {
	return WorkspaceID(generate(WorkspacePrefix))
}

func (id SessionID) String() string   { return string(id) }
func (id CommandID) String() string   { return string(id) }
func (id WorkspaceID) String() string { return string(id) }
