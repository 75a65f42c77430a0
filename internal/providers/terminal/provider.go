package terminal

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/background"
	"github.com/GriffinCanCode/agentshell/internal/types"
)

// Provider exposes the session manager as agent tools
type Provider struct {
	manager *Manager
	root    string
}

// NewProvider creates a terminal provider. root is used when a call's
// context names no workspace.
func NewProvider(manager *Manager, root string) *Provider {
	return &Provider{
		manager: manager,
		root:    root,
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Persistent shell sessions per workspace with completion detection and background processes",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"pty",
			"shell",
			"persistent",
			"background",
			"resize",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "terminal.execute":
		return p.execute(ctx, params, appCtx)
	case "terminal.background_status":
		return p.backgroundStatus(params)
	case "terminal.background_list":
		return p.backgroundList()
	case "terminal.resize":
		return p.resize(params)
	case "terminal.interrupt":
		return p.interrupt(appCtx)
	case "terminal.session_info":
		return p.sessionInfo(appCtx)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "terminal.execute",
			Name:        "Execute Command",
			Description: "Run a command in the workspace's persistent shell and wait for it to finish",
			Parameters: []types.Parameter{
				{
					Name:        "command",
					Type:        "string",
					Description: "Command line to run",
					Required:    true,
				},
				{
					Name:        "background",
					Type:        "boolean",
					Description: "Launch detached and return the process ID immediately",
					Required:    false,
				},
			},
			Returns: "terminal_command_result",
		},
		{
			ID:          "terminal.background_status",
			Name:        "Background Process Status",
			Description: "Get status and output of a background process",
			Parameters: []types.Parameter{
				{
					Name:        "process_id",
					Type:        "number",
					Description: "Process ID returned when the process was launched",
					Required:    true,
				},
			},
			Returns: "background_process_info",
		},
		{
			ID:          "terminal.background_list",
			Name:        "List Background Processes",
			Description: "List all background processes launched in this run",
			Parameters:  []types.Parameter{},
			Returns:     "background_processes",
		},
		{
			ID:          "terminal.resize",
			Name:        "Resize Terminal",
			Description: "Change terminal dimensions for all sessions",
			Parameters: []types.Parameter{
				{
					Name:        "cols",
					Type:        "number",
					Description: "New width in columns",
					Required:    true,
				},
				{
					Name:        "rows",
					Type:        "number",
					Description: "New height in rows",
					Required:    true,
				},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.interrupt",
			Name:        "Interrupt Command",
			Description: "Send Ctrl-C to the running command",
			Parameters:  []types.Parameter{},
			Returns:     "success",
		},
		{
			ID:          "terminal.session_info",
			Name:        "Get Session Info",
			Description: "Get information about the workspace's shell session",
			Parameters:  []types.Parameter{},
			Returns:     "session_info",
		},
	}
}

func (p *Provider) workspace(appCtx *types.Context) string {
	if appCtx != nil && appCtx.Workspace != nil && *appCtx.Workspace != "" {
		return *appCtx.Workspace
	}
	return p.root
}

func mode(appCtx *types.Context) Mode {
	if appCtx != nil && appCtx.Caller != nil {
		return ParseMode(*appCtx.Caller)
	}
	return ModeAgentic
}

func (p *Provider) execute(ctx context.Context, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	command, ok := params["command"].(string)
	if !ok {
		return nil, fmt.Errorf("command is required")
	}
	bg, _ := params["background"].(bool)

	root := p.workspace(appCtx)
	req := CommandRequest{Text: command, Mode: mode(appCtx), Background: bg}

	res, rendered, err := p.manager.Run(ctx, root, req)
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"output": res.Output,
		"status": res.Status,
	}
	if res.ExitCode != nil {
		data["exit_code"] = *res.ExitCode
	}
	if res.TimedOut {
		data["timed_out"] = true
	}
	if bg {
		data["process_id"] = res.ProcessID
	}
	data["rendered"] = rendered

	return &types.Result{
		Success: true,
		Data:    data,
	}, nil
}

func (p *Provider) backgroundStatus(params map[string]interface{}) (*types.Result, error) {
	pid, ok := params["process_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("process_id is required")
	}

	rec, err := p.manager.Background().Query(int(pid))
	if errors.Is(err, background.ErrNotFound) {
		return types.Failure(err.Error()), nil
	}
	if err != nil {
		return nil, err
	}

	info, _ := p.manager.QueryBackground(rec.ID)
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"record":   rec,
			"rendered": info,
		},
	}, nil
}

func (p *Provider) backgroundList() (*types.Result, error) {
	records := p.manager.Background().List()

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"processes": records,
			"count":     len(records),
		},
	}, nil
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	cols, ok := params["cols"].(float64)
	if !ok {
		return nil, fmt.Errorf("cols is required")
	}

	rows, ok := params["rows"].(float64)
	if !ok {
		return nil, fmt.Errorf("rows is required")
	}

	p.manager.Resize(int(cols), int(rows))

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

func (p *Provider) interrupt(appCtx *types.Context) (*types.Result, error) {
	if err := p.manager.Interrupt(p.workspace(appCtx)); err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

func (p *Provider) sessionInfo(appCtx *types.Context) (*types.Result, error) {
	c, err := p.manager.Open(p.workspace(appCtx))
	if err != nil {
		return nil, err
	}
	info := c.Info()

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"id":          info.ID,
			"root":        info.Root,
			"working_dir": info.WorkingDir,
			"backend":     info.Backend,
			"state":       info.State,
			"busy":        info.Busy,
			"pid":         info.Pid,
			"started_at":  info.StartedAt,
			"resets":      info.Resets,
		},
	}, nil
}
