// Package logging provides structured logging for mvstore.
//
// # Overview
//
//   - Four levels (debug, info, warn, error) with level filtering
//   - Text and JSON output formats
//   - Persistent fields and session tagging on derived loggers
//
// # Creating a Logger
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/mvstore.log",
//	})
//
// For tests and embedded use without output:
//
//	logger := logging.NewNop()
//
// # Structured Logging
//
//	logger.Info("chunk sealed", "chunk", 12, "pages", 31, "bytes", 18244)
//
// Text format:
//
//	2026-02-18T10:30:00Z [info] chunk sealed bytes=18244 chunk=12 pages=31
//
// JSON format:
//
//	{"bytes":18244,"chunk":12,"level":"info","msg":"chunk sealed","pages":31,"ts":"2026-02-18T10:30:00Z"}
//
// # Contextual Fields
//
//	engineLogger := logger.WithFields("component", "engine")
//	engineLogger.WithSession(sid).Warn("commit conflict", "table", "users")
//
// Derived loggers share the parent's output.
package logging
