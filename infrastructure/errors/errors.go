// Package errors provides unified error handling for the adjudication layer
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Authentication errors (1xxx)
	ErrCodeUnauthorized ErrorCode = "AUTH_1001"
	ErrCodeInvalidToken ErrorCode = "AUTH_1002"
	ErrCodeTokenExpired ErrorCode = "AUTH_1003"

	// Authorization errors (2xxx)
	ErrCodeForbidden         ErrorCode = "AUTHZ_2001"
	ErrCodeCrossTenantAccess ErrorCode = "AUTHZ_2002"
	ErrCodeBlockedUser       ErrorCode = "AUTHZ_2003"

	// Validation errors (3xxx)
	ErrCodeInvalidInput     ErrorCode = "VAL_3001"
	ErrCodeInvalidRequest   ErrorCode = "VAL_3002"
	ErrCodeMissingParameter ErrorCode = "VAL_3003"
	ErrCodeOutOfRange       ErrorCode = "VAL_3004"
	ErrCodeCommandRejected  ErrorCode = "VAL_3005"

	// Resource errors (4xxx)
	ErrCodeNotFound      ErrorCode = "RES_4001"
	ErrCodeAlreadyExists ErrorCode = "RES_4002"
	ErrCodeConflict      ErrorCode = "RES_4003"

	// Service errors (5xxx)
	ErrCodeInternal              ErrorCode = "SVC_5001"
	ErrCodeTimeout               ErrorCode = "SVC_5002"
	ErrCodeRateLimitExceeded     ErrorCode = "SVC_5003"
	ErrCodeMethodUnavailable     ErrorCode = "SVC_5004"
	ErrCodeDependencyUnavailable ErrorCode = "SVC_5005"
	ErrCodeExternalAPI           ErrorCode = "SVC_5006"

	// Web navigation errors (6xxx)
	ErrCodeDomainNotFound   ErrorCode = "WEB_6001"
	ErrCodeHTTPError        ErrorCode = "WEB_6002"
	ErrCodeContentTooLarge  ErrorCode = "WEB_6003"
	ErrCodeRobotsDisallow   ErrorCode = "WEB_6004"
	ErrCodeMaliciousContent ErrorCode = "WEB_6005"
	ErrCodeInvalidURL       ErrorCode = "WEB_6006"
)

// ServiceError represents a structured error with code, message, and HTTP status
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error with a ServiceError
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Authentication Errors

func Unauthorized(message string) *ServiceError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func InvalidToken(err error) *ServiceError {
	return Wrap(ErrCodeInvalidToken, "Invalid authentication token", http.StatusUnauthorized, err)
}

func TokenExpired() *ServiceError {
	return New(ErrCodeTokenExpired, "Authentication token has expired", http.StatusUnauthorized)
}

// Authorization Errors

func Forbidden(message string) *ServiceError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

func CrossTenantAccess(contextTenant, resourceTenant string) *ServiceError {
	return New(ErrCodeCrossTenantAccess, "Cross-tenant access attempt", http.StatusForbidden).
		WithDetails("context_tenant", contextTenant).
		WithDetails("resource_tenant", resourceTenant)
}

func BlockedUser(userID string) *ServiceError {
	return New(ErrCodeBlockedUser, "User is blocked", http.StatusForbidden).
		WithDetails("user_id", userID)
}

// Validation Errors

func InvalidInput(field, reason string) *ServiceError {
	return New(ErrCodeInvalidInput, "Invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func InvalidRequest(reason string) *ServiceError {
	return New(ErrCodeInvalidRequest, "Invalid verification request", http.StatusBadRequest).
		WithDetails("reason", reason)
}

func MissingParameter(param string) *ServiceError {
	return New(ErrCodeMissingParameter, "Missing required parameter", http.StatusBadRequest).
		WithDetails("parameter", param)
}

func OutOfRange(field string, minValue, maxValue interface{}) *ServiceError {
	return New(ErrCodeOutOfRange, "Value out of range", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("min", minValue).
		WithDetails("max", maxValue)
}

func CommandRejected(reason string) *ServiceError {
	return New(ErrCodeCommandRejected, "Command rejected", http.StatusBadRequest).
		WithDetails("reason", reason)
}

// Resource Errors

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "Resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func AlreadyExists(resource, id string) *ServiceError {
	return New(ErrCodeAlreadyExists, "Resource already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// Service Errors

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

func Timeout(operation string) *ServiceError {
	return New(ErrCodeTimeout, "Operation timeout", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func MethodUnavailable(method string) *ServiceError {
	return New(ErrCodeMethodUnavailable, "Verification method unavailable", http.StatusServiceUnavailable).
		WithDetails("method", method)
}

func DependencyUnavailable(dependency string, err error) *ServiceError {
	return Wrap(ErrCodeDependencyUnavailable, "Dependency unavailable", http.StatusServiceUnavailable, err).
		WithDetails("dependency", dependency)
}

func ExternalAPIError(service string, err error) *ServiceError {
	return Wrap(ErrCodeExternalAPI, "External API call failed", http.StatusBadGateway, err).
		WithDetails("service", service)
}

// Web Navigation Errors

func DomainNotFound(host string, err error) *ServiceError {
	return Wrap(ErrCodeDomainNotFound, "Domain could not be resolved", http.StatusBadGateway, err).
		WithDetails("host", host)
}

func HTTPError(status int, url string) *ServiceError {
	return New(ErrCodeHTTPError, fmt.Sprintf("HTTP error %d", status), http.StatusBadGateway).
		WithDetails("status", status).
		WithDetails("url", url)
}

func ContentTooLarge(url string, size, limit int64) *ServiceError {
	return New(ErrCodeContentTooLarge, "Content exceeds size limit", http.StatusBadGateway).
		WithDetails("url", url).
		WithDetails("size", size).
		WithDetails("limit", limit)
}

func RobotsDisallow(url string) *ServiceError {
	return New(ErrCodeRobotsDisallow, "Path disallowed by robots.txt", http.StatusForbidden).
		WithDetails("url", url)
}

func MaliciousContent(url, reason string) *ServiceError {
	return New(ErrCodeMaliciousContent, "Malicious content detected", http.StatusBadRequest).
		WithDetails("url", url).
		WithDetails("reason", reason)
}

func InvalidURL(url, reason string) *ServiceError {
	return New(ErrCodeInvalidURL, "Invalid URL", http.StatusBadRequest).
		WithDetails("url", url).
		WithDetails("reason", reason)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// HasCode reports whether the first ServiceError in err's chain carries the given error code
func HasCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// HTTPStatusFor returns the HTTP status for err, defaulting to 500
func HTTPStatusFor(err error) int {
	if se := GetServiceError(err); se != nil && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
