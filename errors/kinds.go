package errors

import (
	"fmt"
	"strings"
)

// Error kinds. Every failure surfaced by the pipeline carries exactly one of
// these marks; ValidationFailure kinds additionally carry ErrValidation.
var (
	// ErrConfiguration marks a missing required field or an unsupported step,
	// input or protocol type. Raised before any I/O.
	ErrConfiguration = New("configuration error")

	// ErrValidation marks any schema, identifier-rule or SHACL failure.
	ErrValidation = New("validation failure")
	// ErrSchemaViolation marks a JSON Schema step failure under strict mode.
	ErrSchemaViolation = New("schema violation")
	// ErrIdentifierRule marks an identifier rule failure under strict mode.
	ErrIdentifierRule = New("identifier rule violation")
	// ErrStrictValidation marks a strict validation failure reported by a backend.
	ErrStrictValidation = New("strict validation failure")

	ErrImportCycle     = New("import cycle")
	ErrMissingContext  = New("missing context")
	ErrExternalProcess = New("external process failure")
	ErrFetch           = New("fetch failure")
	ErrProtocol        = New("protocol failure")

	// ErrUnknownProvider and ErrUnknownIdentifier are the only failures a
	// composite plan registry falls through on.
	ErrUnknownProvider   = New("unknown plan provider")
	ErrUnknownIdentifier = New("unknown plan identifier")
)

// Configuration returns a formatted configuration error.
func Configuration(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConfiguration)
}

// Validation marks err with the given validation kind and ErrValidation.
func Validation(kind error, err error) error {
	return Mark(Mark(err, kind), ErrValidation)
}

// ProcessError reports a non-zero exit from an external program.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Is reports ProcessError as an ErrExternalProcess kind.
func (e *ProcessError) Is(target error) bool { return target == ErrExternalProcess }

// HTTPError reports an unexpected upstream status.
type HTTPError struct {
	URI    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.Status, e.URI)
	}
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.Status, e.URI, body)
}

// Is reports HTTPError as an ErrProtocol kind.
func (e *HTTPError) Is(target error) bool { return target == ErrProtocol }
