package terminal

// Event is an input to a controller's loop. Events that carry a generation
// are dropped when it no longer matches the live session.
type Event interface {
	event()
}

// CommandSubmitted asks the loop to run a command and answer on Reply.
type CommandSubmitted struct {
	Request CommandRequest
	Reply   chan<- submitReply
}

// OutputReceived carries a chunk read from the shell.
type OutputReceived struct {
	Gen   uint64
	Chunk []byte
}

// SentinelObserved is raised by the loop itself when the decoder sees the prompt.
type SentinelObserved struct {
	Gen uint64
}

// ProcessExited reports that the interactive shell process ended.
type ProcessExited struct {
	Gen uint64
	Err error
}

// CommandExited reports that a fallback command's child process ended.
type CommandExited struct {
	Gen      uint64
	ExitCode int
	Err      error
}

// TimeoutFired is the agentic command ceiling. Seq identifies the dispatch.
type TimeoutFired struct {
	Gen uint64
	Seq uint64
}

// ReadyTimeout bounds the wait for a new session's first prompt.
type ReadyTimeout struct {
	Gen uint64
}

// DrainTimeout bounds the wait for the prompt after an early resolution.
type DrainTimeout struct {
	Gen uint64
}

// KillRequested closes the session for good.
type KillRequested struct{}

// ResizeRequested forwards new terminal dimensions.
type ResizeRequested struct {
	Cols int
	Rows int
}

// InterruptRequested sends Ctrl-C to the running command.
type InterruptRequested struct {
	Reply chan<- error
}

type submitReply struct {
	result *CommandResult
	err    error
}

func (CommandSubmitted) event()   {}
func (OutputReceived) event()     {}
func (SentinelObserved) event()   {}
func (ProcessExited) event()      {}
func (CommandExited) event()      {}
func (TimeoutFired) event()       {}
func (ReadyTimeout) event()       {}
func (DrainTimeout) event()       {}
func (KillRequested) event()      {}
func (ResizeRequested) event()    {}
func (InterruptRequested) event() {}
