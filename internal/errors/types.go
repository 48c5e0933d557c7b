package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ProxyError struct {
	Code       ProxyErrorCode         `json:"code"`
	Message    string                 `json:"message"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"http_status,omitempty"`
}

// ProxyErrorCode defines specific error conditions within the proxy system.
type ProxyErrorCode int

// Error code constants for different proxy error conditions.
const (
	// Backend-related errors
	ErrCodeBackendUnavailable ProxyErrorCode = iota + 1000
	ErrCodeBackendTimeout
	ErrCodeBackendConnectionFailed
	ErrCodeBackendInvalidResponse

	// Routing-related errors
	ErrCodeInvalidHost
	ErrCodeHostNotConfigured
	ErrCodeRoutingFailed

	// TLS-related errors
	ErrCodeTLSHandshake
	ErrCodeCertificateNotFound
	ErrCodeCertificateExpired
	ErrCodeCertificateInvalid

	// Security-related errors
	ErrCodeRateLimited
	ErrCodeAccessDenied
	ErrCodeInvalidOrigin

	// Configuration-related errors
	ErrCodeConfigInvalid
	ErrCodeConfigMissing
	ErrCodeConfigValidation

	// Health check-related errors
	ErrCodeHealthCheckFailed
	ErrCodeHealthCheckTimeout
	ErrCodeCircuitBreakerOpen

	// Request processing errors
	ErrCodeRequestInvalid
	ErrCodeRequestTooLarge
	ErrCodeRequestTimeout

	// Internal errors
	ErrCodeInternalError
	ErrCodeServiceUnavailable
	ErrCodeNotImplemented
)

// ACME certificate-lifecycle errors (spec.md §7). Kept in their own
// range so the existing proxy codes never shift.
const (
	ErrCodeACMEConfigInvalid ProxyErrorCode = iota + 2000
	ErrCodeACMEFileIO
	ErrCodeACMEProtocol
	ErrCodeACMEConflict
	ErrCodeACMERetryAfter
	ErrCodeACMEChallengeFailed
	ErrCodeACMEInvalidValidityWindow
	ErrCodeACMEIllegalState
	ErrCodeACMEAggregate
)

func (e *ProxyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProxyError) Unwrap() error {
	return e.Cause
}

func (e *ProxyError) Is(target error) bool {
	if t, ok := target.(*ProxyError); ok {
		return e.Code == t.Code
	}
	return false
}

func (e *ProxyError) As(target interface{}) bool {
	if t, ok := target.(**ProxyError); ok {
		*t = e
		return true
	}
	return false
}

func (e *ProxyError) WithContext(key string, value interface{}) *ProxyError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *ProxyError) WithHTTPStatus(status int) *ProxyError {
	e.HTTPStatus = status
	return e
}

func (code ProxyErrorCode) String() string {
	switch code {
	case ErrCodeBackendUnavailable:
		return "backend_unavailable"
	case ErrCodeBackendTimeout:
		return "backend_timeout"
	case ErrCodeBackendConnectionFailed:
		return "backend_connection_failed"
	case ErrCodeBackendInvalidResponse:
		return "backend_invalid_response"
	case ErrCodeInvalidHost:
		return "invalid_host"
	case ErrCodeHostNotConfigured:
		return "host_not_configured"
	case ErrCodeRoutingFailed:
		return "routing_failed"
	case ErrCodeTLSHandshake:
		return "tls_handshake"
	case ErrCodeCertificateNotFound:
		return "certificate_not_found"
	case ErrCodeCertificateExpired:
		return "certificate_expired"
	case ErrCodeCertificateInvalid:
		return "certificate_invalid"
	case ErrCodeRateLimited:
		return "rate_limited"
	case ErrCodeAccessDenied:
		return "access_denied"
	case ErrCodeInvalidOrigin:
		return "invalid_origin"
	case ErrCodeConfigInvalid:
		return "config_invalid"
	case ErrCodeConfigMissing:
		return "config_missing"
	case ErrCodeConfigValidation:
		return "config_validation"
	case ErrCodeHealthCheckFailed:
		return "health_check_failed"
	case ErrCodeHealthCheckTimeout:
		return "health_check_timeout"
	case ErrCodeCircuitBreakerOpen:
		return "circuit_breaker_open"
	case ErrCodeRequestInvalid:
		return "request_invalid"
	case ErrCodeRequestTooLarge:
		return "request_too_large"
	case ErrCodeRequestTimeout:
		return "request_timeout"
	case ErrCodeInternalError:
		return "internal_error"
	case ErrCodeServiceUnavailable:
		return "service_unavailable"
	case ErrCodeNotImplemented:
		return "not_implemented"
	case ErrCodeACMEConfigInvalid:
		return "acme_config_invalid"
	case ErrCodeACMEFileIO:
		return "acme_file_io"
	case ErrCodeACMEProtocol:
		return "acme_protocol"
	case ErrCodeACMEConflict:
		return "acme_conflict"
	case ErrCodeACMERetryAfter:
		return "acme_retry_after"
	case ErrCodeACMEChallengeFailed:
		return "acme_challenge_failed"
	case ErrCodeACMEInvalidValidityWindow:
		return "acme_invalid_validity_window"
	case ErrCodeACMEIllegalState:
		return "acme_illegal_state"
	case ErrCodeACMEAggregate:
		return "acme_aggregate"
	default:
		return "unknown_error"
	}
}

func (code ProxyErrorCode) HTTPStatus() int {
	switch code {
	case ErrCodeBackendUnavailable, ErrCodeBackendConnectionFailed:
		return http.StatusBadGateway
	case ErrCodeBackendTimeout, ErrCodeHealthCheckTimeout, ErrCodeRequestTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeInvalidHost, ErrCodeHostNotConfigured:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeAccessDenied, ErrCodeInvalidOrigin:
		return http.StatusForbidden
	case ErrCodeRequestInvalid, ErrCodeBackendInvalidResponse:
		return http.StatusBadRequest
	case ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeTLSHandshake, ErrCodeCertificateNotFound, ErrCodeCertificateExpired, ErrCodeCertificateInvalid:
		return http.StatusBadGateway
	case ErrCodeCircuitBreakerOpen, ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeNotImplemented:
		return http.StatusNotImplemented
	case ErrCodeConfigInvalid, ErrCodeConfigMissing, ErrCodeConfigValidation, ErrCodeHealthCheckFailed:
		return http.StatusInternalServerError
	case ErrCodeACMEConfigInvalid:
		return http.StatusBadRequest
	case ErrCodeACMEIllegalState:
		return http.StatusConflict
	case ErrCodeACMEFileIO, ErrCodeACMEProtocol, ErrCodeACMEChallengeFailed,
		ErrCodeACMEInvalidValidityWindow, ErrCodeACMEAggregate:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewACMEError builds a ProxyError in the ACME error-code range, carrying
// whichever identifying context (account, certificate, domain) is relevant.
func NewACMEError(code ProxyErrorCode, context map[string]interface{}, cause error) *ProxyError {
	err := &ProxyError{
		Code:       code,
		Message:    fmt.Sprintf("acme: %s", code.String()),
		Cause:      cause,
		Context:    context,
		HTTPStatus: code.HTTPStatus(),
	}

	if cause != nil {
		err.Message = fmt.Sprintf("acme: %s: %v", code.String(), cause)
	}

	return err
}

// AggregateError wraps multiple independent failures collected from a
// fan-out (per-certificate within an account, per-account within a
// reconcile). It is the concrete type behind spec.md §7's "Aggregate"
// error kind.
type AggregateError struct {
	// Label describes what was being fanned out, e.g. "account" or "certificate".
	Label  string
	Errors []error
}

func (a *AggregateError) Error() string {
	if len(a.Errors) == 1 {
		return fmt.Sprintf("%s: %v", a.Label, a.Errors[0])
	}
	msgs := make([]string, len(a.Errors))
	for i, e := range a.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d %s failure(s): %s", len(a.Errors), a.Label, strings.Join(msgs, "; "))
}

func (a *AggregateError) Unwrap() []error {
	return a.Errors
}

// NewAggregateError returns nil if errs is empty, the single error if
// there's exactly one, or an *AggregateError otherwise. Callers can
// therefore always do `if err := NewAggregateError(...); err != nil`.
func NewAggregateError(label string, errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &AggregateError{Label: label, Errors: errs}
	}
}

func NewBackendError(code ProxyErrorCode, backend string, cause error) *ProxyError {
	err := &ProxyError{
		Code:       code,
		Message:    fmt.Sprintf("backend error: %s", code.String()),
		Cause:      cause,
		Context:    map[string]interface{}{"backend": backend},
		HTTPStatus: code.HTTPStatus(),
	}

	if cause != nil {
		err.Message = fmt.Sprintf("backend %s: %s", backend, cause.Error())
	}

	return err
}

func NewRoutingError(code ProxyErrorCode, host string, cause error) *ProxyError {
	err := &ProxyError{
		Code:       code,
		Message:    fmt.Sprintf("routing error: %s", code.String()),
		Cause:      cause,
		Context:    map[string]interface{}{"host": host},
		HTTPStatus: code.HTTPStatus(),
	}

	if cause != nil {
		err.Message = fmt.Sprintf("routing for host %s: %s", host, cause.Error())
	}

	return err
}

func NewTLSError(code ProxyErrorCode, domain string, cause error) *ProxyError {
	err := &ProxyError{
		Code:       code,
		Message:    fmt.Sprintf("TLS error: %s", code.String()),
		Cause:      cause,
		Context:    map[string]interface{}{"domain": domain},
		HTTPStatus: code.HTTPStatus(),
	}

	if cause != nil {
		err.Message = fmt.Sprintf("TLS for domain %s: %s", domain, cause.Error())
	}

	return err
}

func NewConfigError(code ProxyErrorCode, field string, cause error) *ProxyError {
	err := &ProxyError{
		Code:       code,
		Message:    fmt.Sprintf("configuration error: %s", code.String()),
		Cause:      cause,
		Context:    map[string]interface{}{"field": field},
		HTTPStatus: code.HTTPStatus(),
	}

	if cause != nil {
		err.Message = fmt.Sprintf("configuration field %s: %s", field, cause.Error())
	}

	return err
}

func NewSecurityError(code ProxyErrorCode, reason string, cause error) *ProxyError {
	err := &ProxyError{
		Code:       code,
		Message:    fmt.Sprintf("security error: %s", code.String()),
		Cause:      cause,
		Context:    map[string]interface{}{"reason": reason},
		HTTPStatus: code.HTTPStatus(),
	}

	if cause != nil {
		err.Message = fmt.Sprintf("security violation (%s): %s", reason, cause.Error())
	}

	return err
}

func WrapError(code ProxyErrorCode, message string, cause error) *ProxyError {
	return &ProxyError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		Context:    make(map[string]interface{}),
		HTTPStatus: code.HTTPStatus(),
	}
}

var (
	ErrBackendUnavailable = &ProxyError{
		Code:       ErrCodeBackendUnavailable,
		Message:    "no healthy backend available",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrHostNotConfigured = &ProxyError{
		Code:       ErrCodeHostNotConfigured,
		Message:    "host not configured in routing table",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRateLimited = &ProxyError{
		Code:       ErrCodeRateLimited,
		Message:    "rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrCircuitBreakerOpen = &ProxyError{
		Code:       ErrCodeCircuitBreakerOpen,
		Message:    "circuit breaker is open",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

func IsTemporary(err error) bool {
	var proxyErr *ProxyError
	if errors.As(err, &proxyErr) {
		switch proxyErr.Code {
		case ErrCodeBackendTimeout, ErrCodeBackendConnectionFailed,
			ErrCodeHealthCheckTimeout, ErrCodeRequestTimeout,
			ErrCodeCircuitBreakerOpen, ErrCodeServiceUnavailable:
			return true
		}
	}
	return false
}

func IsRetryable(err error) bool {
	var proxyErr *ProxyError
	if errors.As(err, &proxyErr) {
		switch proxyErr.Code {
		case ErrCodeBackendTimeout, ErrCodeBackendConnectionFailed,
			ErrCodeBackendUnavailable, ErrCodeServiceUnavailable:
			return true
		}
	}
	return false
}

func IsSecurity(err error) bool {
	var proxyErr *ProxyError
	if errors.As(err, &proxyErr) {
		switch proxyErr.Code {
		case ErrCodeRateLimited, ErrCodeAccessDenied, ErrCodeInvalidOrigin:
			return true
		}
	}
	return false
}
