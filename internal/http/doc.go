// Package http provides the HTTP handlers of the debug server.
//
// Endpoints:
//   - Health: /healthz
//   - Sessions: /sessions
//   - Background processes: /background, /background/:id
//   - Services: /services, /services/execute
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, registry, metrics)
//	router.GET("/sessions", handlers.ListSessions)
package http
