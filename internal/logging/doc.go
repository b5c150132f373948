// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("queue started", zap.Int("workers", 8))
//	logger.Error("dependency call failed", zap.Error(err))
package logging
