// Package logging provides slog-based structured logging for yakusub.
//
// Output fans out to a human-readable console handler and a JSON file
// handler that writes one log file per day. Standardized field names keep
// pipeline logs queryable: every stage log carries the movie code, the
// video filename, and the stage name.
package logging
