package errorj

import (
	"github.com/joomcode/errorx"
)

// Run failure taxonomy. Every spout run failure is wrapped into exactly one
// of these types so that callers can distinguish failure kinds without
// parsing messages.
var (
	spoutErrors = errorx.NewNamespace("spout")

	// ConfigError - bad or missing connection parameters, reported before any I/O
	ConfigError = spoutErrors.NewType("config")
	// ConnectionError - source host is unreachable or rejected the session
	ConnectionError = spoutErrors.NewType("connection")
	// AuthError - source rejected the provided credentials
	AuthError = ConnectionError.NewSubtype("auth")
	// QueryError - malformed query or extraction spec rejected by the source
	QueryError = spoutErrors.NewType("query")
	// TimeoutError - extraction exceeded the configured deadline
	TimeoutError = spoutErrors.NewType("timeout", errorx.Timeout())
	// PartialReadError - source connection dropped mid scan. Partial results are discarded
	PartialReadError = spoutErrors.NewType("partial_read")
	// WriteError - batch artifact destination is unavailable or out of space
	WriteError = spoutErrors.NewType("write")
)

// DBInfo attaches a types.ErrorPayload with source coordinates to an error
var DBInfo = errorx.RegisterPrintableProperty("db_info")

// Decorate adds a message to err without changing its taxonomy type
func Decorate(err error, message string, args ...any) *errorx.Error {
	return errorx.Decorate(err, message, args...)
}

// IsTimeout reports whether err is a deadline failure of any origin
func IsTimeout(err error) bool {
	return errorx.HasTrait(err, errorx.Timeout())
}

// Kind returns the taxonomy type of err or nil for plain errors
func Kind(err error) *errorx.Type {
	typed := errorx.Cast(err)
	if typed == nil {
		return nil
	}
	return typed.Type()
}
