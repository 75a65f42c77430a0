package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/GriffinCanCode/agentshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/background"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/format"
	"github.com/GriffinCanCode/agentshell/internal/shared/id"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Options configures a Manager.
type Options struct {
	Config  *config.Config
	Spawner Spawner
	Clock   clock.WithDelayedExecution
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	// ClearScreen is called for clear/cls/reset instead of sending them to
	// the shell. Nil makes them no-ops.
	ClearScreen func()
	// Launcher overrides how background commands are started.
	Launcher background.Launcher
}

// Manager owns one controller per workspace root and the shared
// background registry.
type Manager struct {
	cfg       *config.Config
	spawner   Spawner
	clock     clock.WithDelayedExecution
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	clear     func()
	registry  *background.Registry
	formatter *format.Formatter

	mu          sync.Mutex
	controllers map[string]*Controller
	cols, rows  int
	closed      bool
}

// NewManager creates a manager. Sessions are spawned lazily per workspace.
func NewManager(opts Options) *Manager {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Spawner == nil {
		opts.Spawner = NewSupervisor(opts.Config.Shell, opts.Logger, opts.Metrics)
	}

	return &Manager{
		cfg:     opts.Config,
		spawner: opts.Spawner,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		clear:   opts.ClearScreen,
		registry: background.NewRegistry(background.Options{
			Launcher: opts.Launcher,
			Env:      Environ(os.Environ()),
			Clock:    opts.Clock,
			Logger:   opts.Logger.Named("background"),
			Metrics:  opts.Metrics,
		}),
		formatter:   format.New(opts.Config.Shell.MaxOutput).OnTruncate(opts.Metrics.RecordTruncation),
		controllers: make(map[string]*Controller),
		cols:        opts.Config.Terminal.Cols,
		rows:        opts.Config.Terminal.Rows,
	}
}

// Open returns the controller for root, spawning its session on first use.
func (m *Manager) Open(root string) (*Controller, error) {
	abs, err := workspaceRoot(root)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if c, ok := m.controllers[abs]; ok {
		return c, nil
	}

	wsID := id.NewWorkspaceID()
	c := NewController(ControllerOptions{
		Root:         abs,
		Timeout:      m.cfg.Shell.Timeout,
		ReadyTimeout: m.cfg.Shell.ReadyTimeout,
		DrainGrace:   m.cfg.Shell.DrainGrace,
		Cols:         m.cols,
		Rows:         m.rows,
		Spawner:      m.spawner,
		Clock:        m.clock,
		Logger:       m.logger.With(zap.String("workspace_id", wsID.String())),
		Metrics:      m.metrics,
	})
	m.controllers[abs] = c
	m.logger.Info("Workspace opened",
		zap.String("workspace", abs),
		zap.String("workspace_id", wsID.String()),
	)
	return c, nil
}

func workspaceRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace root %s is not a directory", abs)
	}
	return abs, nil
}

func (m *Manager) lookup(root string) (*Controller, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	c, ok := m.controllers[abs]
	if !ok {
		return nil, fmt.Errorf("workspace %s is not open", abs)
	}
	return c, nil
}

// Submit routes a request: background launches go to the registry,
// screen clears to the host hook, everything else to the workspace's
// session. The returned output is already truncated.
func (m *Manager) Submit(ctx context.Context, root string, req CommandRequest) (*CommandResult, error) {
	res, _, err := m.Run(ctx, root, req)
	return res, err
}

// Execute submits text and renders the result envelope.
func (m *Manager) Execute(ctx context.Context, root, text string, mode Mode, background bool) (string, error) {
	_, rendered, err := m.Run(ctx, root, CommandRequest{Text: text, Mode: mode, Background: background})
	return rendered, err
}

// Run submits req and returns the result with its rendered envelope. A
// background launch renders from the record the registry returned, so a
// spawn failure that was never registered still reaches the caller.
func (m *Manager) Run(ctx context.Context, root string, req CommandRequest) (*CommandResult, string, error) {
	if req.Mode == "" {
		req.Mode = ModeAgentic
	}
	timer := monitoring.NewTimer(m.metrics, string(req.Mode))

	res, rec, err := m.submit(ctx, root, req)
	if err != nil {
		timer.Stop("error")
		return nil, "", err
	}
	timer.Stop(outcome(req, res))

	if rec != nil {
		return res, m.formatter.BackgroundStarted(*rec), nil
	}
	return res, m.formatter.CommandResult(res.Output, res.Status), nil
}

func (m *Manager) submit(ctx context.Context, root string, req CommandRequest) (*CommandResult, *background.Record, error) {
	c, err := m.Open(root)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case req.Background:
		rec := m.registry.Launch(req.Text, c.WorkingDir())
		res := &CommandResult{ProcessID: rec.ID, Status: StatusBackground}
		if rec.Status == background.StatusError {
			res.Status = "Background process failed to start: " + rec.Error
		}
		return res, &rec, nil

	case isClearCommand(req.Text):
		if m.clear != nil {
			m.clear()
		}
		return &CommandResult{Status: StatusCleared}, nil, nil
	}

	res, err := c.Submit(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	res.Output = m.formatter.Truncate(res.Output)
	return res, nil, nil
}

func outcome(req CommandRequest, res *CommandResult) string {
	switch {
	case req.Background:
		return "background"
	case res.TimedOut:
		return "timeout"
	case res.Status == StatusCompleted:
		return "completed"
	case res.Status == StatusUnknown:
		return "unknown"
	case res.Status == StatusInterrupted:
		return "interrupted"
	case res.Status == StatusNotFound:
		return "not_found"
	case res.Status == StatusShellExited:
		return "exited"
	case res.Status == StatusCleared:
		return "clear"
	default:
		return "failed"
	}
}

// QueryBackground renders the state of one background process.
func (m *Manager) QueryBackground(pid int) (string, error) {
	rec, err := m.registry.Query(pid)
	if err != nil {
		if errors.Is(err, background.ErrNotFound) {
			return m.formatter.NotFound(pid), err
		}
		return "", err
	}
	return m.formatter.BackgroundInfo(rec, m.clock.Now()), nil
}

// ListBackground renders every background process.
func (m *Manager) ListBackground() string {
	return m.formatter.BackgroundList(m.registry.List(), m.clock.Now())
}

// Background exposes the registry for structured access.
func (m *Manager) Background() *background.Registry {
	return m.registry
}

// Resize applies new dimensions to every session and to future spawns.
func (m *Manager) Resize(cols, rows int) {
	m.mu.Lock()
	m.cols, m.rows = cols, rows
	controllers := m.snapshot()
	m.mu.Unlock()

	for _, c := range controllers {
		c.Resize(cols, rows)
	}
}

// Interrupt sends Ctrl-C to the workspace's running command.
func (m *Manager) Interrupt(root string) error {
	c, err := m.lookup(root)
	if err != nil {
		return err
	}
	return c.Interrupt()
}

// WorkingDir returns the workspace's tracked working directory.
func (m *Manager) WorkingDir(root string) (string, error) {
	c, err := m.lookup(root)
	if err != nil {
		return "", err
	}
	return c.WorkingDir(), nil
}

// Sessions lists all workspace sessions ordered by root.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	controllers := m.snapshot()
	m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(controllers))
	for _, c := range controllers {
		infos = append(infos, c.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Root < infos[j].Root })
	return infos
}

// CloseWorkspace kills root's session and forgets it.
func (m *Manager) CloseWorkspace(root string) error {
	c, err := m.lookup(root)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for k, v := range m.controllers {
		if v == c {
			delete(m.controllers, k)
		}
	}
	m.mu.Unlock()

	m.logger.Info("Workspace closed", zap.String("workspace", c.Info().Root))
	return c.Close()
}

// Close kills every session. Background processes keep running.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	controllers := m.snapshot()
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range controllers {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			_ = c.Close()
		}(c)
	}
	wg.Wait()
	return nil
}

// snapshot must be called with m.mu held.
func (m *Manager) snapshot() []*Controller {
	out := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		out = append(out, c)
	}
	return out
}
