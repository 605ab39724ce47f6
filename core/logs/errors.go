package logs

import "errors"

const (
	ErrorCodeNotFound   = "logs.not_found"
	ErrorCodeValidation = "logs.validation"
)

type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Code + ": " + e.Message
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// QueryError wraps a store failure. The original cause is attached for
// server-side logging; handlers must never echo it to clients.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return "logs: query failed: " + e.Err.Error() }
func (e *QueryError) Unwrap() error { return e.Err }

// ExportError wraps a filesystem or compression failure during export.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string { return "logs: export failed: " + e.Err.Error() }
func (e *ExportError) Unwrap() error { return e.Err }
