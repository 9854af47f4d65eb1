// Package logger provides a structured logging facility based on Zap.
//
// New builds a production logger (json) or a development logger (debug level)
// from Config. Console format switches to colored, human readable output,
// which suits a daemon running next to a printer. An optional File is written
// in addition to stderr.
//
// # Context Awareness
//
// The WithRayID helper extracts the RayID set by the rayid middleware from a
// Fiber context and attaches it to the log entry, so every log line of a
// status API request can be correlated.
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info", Format: "console"})
//	log.Info("Backup starting", zap.String("branch", "main"))
//
//	// In a request handler:
//	l := logger.WithRayID(log, c)
//	l.Error("Trigger failed", zap.Error(err))
package logger
