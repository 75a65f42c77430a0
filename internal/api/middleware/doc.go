// Package middleware provides the gin middleware of the debug server.
//
//   - CORS: lets a local dashboard read the debug endpoints
//   - RateLimit: per-IP token bucket in front of tool execution
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(origins)))
//	router.POST("/services/execute", middleware.RateLimit(middleware.DefaultRateLimitConfig()), h.ExecuteService)
package middleware
