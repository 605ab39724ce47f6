package docs

import "errors"

// Domain error codes, mapped to HTTP status by the handlers. Anything
// else escaping the service is an infrastructure failure and surfaces as
// a generic 500.
const (
	ErrorCodeNotFound   = "docs.not_found"
	ErrorCodeValidation = "docs.validation"
	ErrorCodeConflict   = "docs.conflict"
	ErrorCodeForbidden  = "docs.forbidden"
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
