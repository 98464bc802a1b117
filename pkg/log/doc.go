// Package log provides structured session-event logging for the soft AP
// stack.
//
// This package defines the Logger interface and Event types capturing
// the machine-readable trace of a session: state transitions, client
// admissions and disconnects, driver command errors and timer activity.
// It is separate from operational logging (slog) - the event trace is a
// complete, replayable record for debugging and analysis.
//
// # Basic Usage
//
// The session is configured with a Logger implementation:
//
//	// For development: log to console via slog
//	deps.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	deps.EventLogger, _ = log.NewFileLogger("/var/log/softap/session.aplog")
//
//	// Both: use MultiLogger
//	deps.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys.
// Reader iterates a file with optional filtering.
package log
