package errs

import "net/http"

const (
	ValidationFailed     = 1001
	RegistrationError    = 1002
	ConfigurationError   = 1003
	NotFound             = 1004
	Unauthorized         = 1401
	PersistenceFailure   = 2001
	SummaryUpdateFailure = 2002
	ServerInternalError  = 5000
)

var (
	ErrValidationFailed     = NewCodeError(ValidationFailed, "validation failed")
	ErrRegistration         = NewCodeError(RegistrationError, "malformed identity")
	ErrConfiguration        = NewCodeError(ConfigurationError, "conversation configuration error")
	ErrNotFound             = NewCodeError(NotFound, "record not found")
	ErrTokenExpired         = NewCodeError(Unauthorized, "unauthorized")
	ErrPersistenceFailure   = NewCodeError(PersistenceFailure, "message persistence failed")
	ErrSummaryUpdateFailure = NewCodeError(SummaryUpdateFailure, "conversation summary update failed")
	ErrInternal             = NewCodeError(ServerInternalError, "internal error")
)

func init() {
	// a storage failure on the summary write is a persistence failure too
	_ = DefaultCodeRelation.Add(PersistenceFailure, SummaryUpdateFailure)
}

// HTTPStatus maps an error to the status code REST handlers answer with.
func HTTPStatus(err error) int {
	ce, ok := AsCodeError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ce.Code {
	case ValidationFailed, RegistrationError, ConfigurationError:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Body returns the JSON-able CodeError for err, falling back to ErrInternal.
func Body(err error) CodeError {
	if ce, ok := AsCodeError(err); ok {
		return *ce
	}
	return ErrInternal
}
