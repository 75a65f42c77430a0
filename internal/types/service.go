package types

// Category represents service categories
type Category string

const (
	CategorySystem Category = "system"
)

// Service represents a service definition
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Tools        []Tool   `json:"tools"`
}

// Tool represents a service tool
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Context identifies the caller of a tool
type Context struct {
	// Workspace is the root the command runs against; empty means the provider default
	Workspace *string `json:"workspace,omitempty"`
	// Caller is "interactive" for a human at the terminal, anything else is the agent
	Caller *string `json:"caller,omitempty"`
}

// Result represents a service execution result
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Failure builds an unsuccessful result carrying msg
func Failure(msg string) *Result {
	return &Result{Success: false, Error: &msg}
}

// ExecuteRequest is the HTTP body for running a tool
type ExecuteRequest struct {
	ToolID    string                 `json:"tool_id" binding:"required"`
	Params    map[string]interface{} `json:"params"`
	Workspace *string                `json:"workspace,omitempty"`
	Caller    *string                `json:"caller,omitempty"`
}
