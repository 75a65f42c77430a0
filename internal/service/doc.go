// Package service provides the tool registry that fronts the session manager.
//
// Providers describe themselves with a types.Service definition and execute
// tools addressed as "<service>.<tool>". The registry routes a tool ID to the
// provider owning its prefix.
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(terminal.NewProvider(manager, root))
//	result, err := registry.Execute(ctx, "terminal.execute", params, appCtx)
package service
