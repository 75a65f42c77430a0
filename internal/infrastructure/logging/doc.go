// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs are written to stderr by default so that they never interleave with
// the command output the CLI prints on stdout.
//
// Example Usage:
//
//	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Session spawned", zap.String("session_id", id))
//	logger.Error("PTY allocation failed", zap.Error(err))
package logging
