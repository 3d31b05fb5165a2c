package services

// Error codes surfaced to callers alongside the HTTP status.
const (
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeOrderNotFound     = "ORDER_NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidOrderState = "INVALID_ORDER_STATE"
	CodeUnknownOrder      = "UNKNOWN_ORDER"
	CodeProviderFailure   = "PROVIDER_FAILURE"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL"
)

// ServiceError is a typed error with an HTTP status code and a stable
// machine-readable code.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

func errMissingParameter(msg string) *ServiceError {
	return &ServiceError{StatusCode: 400, Code: CodeMissingParameter, Message: msg}
}

func errOrderNotFound() *ServiceError {
	return &ServiceError{StatusCode: 404, Code: CodeOrderNotFound, Message: "Order not found"}
}

func errUnauthorized(msg string) *ServiceError {
	return &ServiceError{StatusCode: 403, Code: CodeUnauthorized, Message: msg}
}

func errInvalidTransition(msg string) *ServiceError {
	return &ServiceError{StatusCode: 409, Code: CodeInvalidTransition, Message: msg}
}

func errInvalidOrderState(msg string) *ServiceError {
	return &ServiceError{StatusCode: 409, Code: CodeInvalidOrderState, Message: msg}
}

func errUnknownOrder() *ServiceError {
	return &ServiceError{StatusCode: 404, Code: CodeUnknownOrder, Message: "Callback does not match a known payment"}
}

func errProviderFailure(msg string) *ServiceError {
	return &ServiceError{StatusCode: 502, Code: CodeProviderFailure, Message: msg}
}

func errConflict() *ServiceError {
	return &ServiceError{StatusCode: 409, Code: CodeConflict, Message: "Order was modified concurrently, please retry"}
}

func errInternal(msg string) *ServiceError {
	return &ServiceError{StatusCode: 500, Code: CodeInternal, Message: msg}
}
