package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/agentshell/internal/types"
)

type mockProvider struct {
	id       string
	lastTool string
	lastCtx  *types.Context
}

func (m *mockProvider) Definition() types.Service {
	return types.Service{
		ID:           m.id,
		Name:         "Mock Service",
		Description:  "A mock service for testing",
		Category:     types.CategorySystem,
		Capabilities: []string{"read", "write"},
		Tools: []types.Tool{
			{
				ID:          m.id + ".test",
				Name:        "Test Tool",
				Description: "A test tool",
				Returns:     "string",
			},
		},
	}
}

func (m *mockProvider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	m.lastTool = toolID
	m.lastCtx = appCtx
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"result": "success"},
	}, nil
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{id: "test"}

	require.NoError(t, r.Register(p))

	got, ok := r.Get("test")
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestRegisterRejectsEmptyID(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&mockProvider{}))
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "test"}))

	r.Unregister("test")

	_, ok := r.Get("test")
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "zeta"}))
	require.NoError(t, r.Register(&mockProvider{id: "alpha"}))

	services := r.List(nil)
	require.Len(t, services, 2)
	assert.Equal(t, "alpha", services[0].ID)
	assert.Equal(t, "zeta", services[1].ID)

	cat := types.CategorySystem
	assert.Len(t, r.List(&cat), 2)

	other := types.Category("storage")
	assert.Empty(t, r.List(&other))
}

func TestTools(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "b"}))
	require.NoError(t, r.Register(&mockProvider{id: "a"}))

	tools := r.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "a.test", tools[0].ID)
	assert.Equal(t, "b.test", tools[1].ID)
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{id: "test"}
	require.NoError(t, r.Register(p))

	workspace := "/tmp"
	appCtx := &types.Context{Workspace: &workspace}
	result, err := r.Execute(context.Background(), "test.test", map[string]interface{}{}, appCtx)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "test.test", p.lastTool)
	assert.Same(t, appCtx, p.lastCtx)
}

func TestExecuteInvalidToolID(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "nodot", nil, nil)
	require.ErrorIs(t, err, ErrInvalidToolID)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
}

func TestExecuteUnknownService(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "missing.tool", nil, nil)
	require.ErrorIs(t, err, ErrServiceNotFound)
	assert.False(t, result.Success)
	assert.Equal(t, "service not found: missing", *result.Error)
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "test1"}))
	require.NoError(t, r.Register(&mockProvider{id: "test2"}))

	stats := r.Stats()
	assert.Equal(t, 2, stats["total_services"])
	assert.Equal(t, 2, stats["total_tools"])
	assert.Equal(t, map[string]int{"system": 2}, stats["categories"])
}
