package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorUnavailable  ErrorCode = "unavailable"
)

// Validation reasons carried in ServiceError.Reason.
const (
	ReasonPainLevelOutOfRange = "painLevelOutOfRange"
	ReasonNegativeWeight      = "negativeWeight"
	ReasonUnknownRole         = "unknownRole"
	ReasonInvalidEmail        = "invalidEmail"
	ReasonWeakPassword        = "weakPassword"
	ReasonNameRequired        = "nameRequired"
	ReasonTitleRequired       = "titleRequired"
	ReasonIDRequired          = "idRequired"
	ReasonDuplicateEmail      = "duplicateEmail"
	ReasonDuplicateID         = "duplicateId"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Reason  string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

func NewInvalidError(msg string) error { return &ServiceError{Code: ErrorInvalid, Message: msg} }

func NewValidationError(reason, msg string) error {
	return &ServiceError{Code: ErrorInvalid, Message: msg, Reason: reason}
}

func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewDuplicateError(reason, msg string) error {
	return &ServiceError{Code: ErrorConflict, Message: msg, Reason: reason}
}
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

// NewUnavailableError marks a storage failure that a caller may retry.
func NewUnavailableError(msg string, err error) error {
	return &ServiceError{Code: ErrorUnavailable, Message: msg, Err: err}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func IsCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}
