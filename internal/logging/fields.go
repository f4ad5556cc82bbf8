// Package logging provides structured logging utilities for modekeeper.
package logging

// Standard field names for consistent logging across the application.
const (
	// FieldNode is the cluster node name a log line concerns.
	FieldNode = "node"

	// FieldMode is a mode token.
	FieldMode = "mode"

	// FieldPreviousMode is the mode token before a transition.
	FieldPreviousMode = "previous_mode"

	// FieldTarget is a probe target (file path or key).
	FieldTarget = "target"

	// FieldTargets is a list of probe targets.
	FieldTargets = "targets"

	// FieldOperation identifies the storage operation being performed.
	FieldOperation = "operation"

	// FieldComponent identifies the component generating the log.
	FieldComponent = "component"

	// FieldErrorCode is a storage engine error number.
	FieldErrorCode = "error_code"

	// FieldRequestID is a unique identifier for each HTTP request.
	FieldRequestID = "request_id"

	// FieldDuration is the duration of an operation in milliseconds.
	FieldDuration = "duration_ms"

	// FieldStatusCode is the HTTP status code of a response.
	FieldStatusCode = "status_code"

	// FieldMethod is the HTTP method of a request.
	FieldMethod = "method"

	// FieldPath is the URL path of an HTTP request.
	FieldPath = "path"

	// FieldRemoteAddr is the client's remote address.
	FieldRemoteAddr = "remote_addr"

	// FieldError is the error message or description.
	FieldError = "error"
)
