// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the typed error values returned by the relying-party
// authentication flow. Every error carries a stable Kind that callers can
// switch on, plus a human-readable message.
package errors

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error code.
type Kind string

// Error kinds
const (
	// KindConfigInvalid is returned when the supplied configuration is incomplete or insecure
	KindConfigInvalid Kind = "config_invalid"

	// KindStateMismatch is returned when the callback state does not match the persisted state
	KindStateMismatch Kind = "state_mismatch"

	// KindMissingCodeVerifier is returned when no PKCE code verifier is available for the exchange
	KindMissingCodeVerifier Kind = "missing_code_verifier"

	// KindTokenExchangeFailed is returned when the token endpoint rejects an authorization code
	KindTokenExchangeFailed Kind = "token_exchange_failed"

	// KindRefreshExchangeFailed is returned when the token endpoint rejects a refresh token
	KindRefreshExchangeFailed Kind = "refresh_exchange_failed"

	// KindTokenResponseInvalidJSON is returned when a code exchange response is not a JSON object
	KindTokenResponseInvalidJSON Kind = "token_response_invalid_json"

	// KindRefreshResponseInvalidJSON is returned when a refresh response is not a JSON object
	KindRefreshResponseInvalidJSON Kind = "refresh_response_invalid_json"

	// KindUserInfoURLMissing is returned when user info is requested without a configured endpoint
	KindUserInfoURLMissing Kind = "userinfo_url_missing"

	// KindUserInfoRequestFailed is returned when the user-info endpoint responds with an error status
	KindUserInfoRequestFailed Kind = "userinfo_request_failed"

	// KindUserInfoInvalidJSON is returned when the user-info response is not a JSON object
	KindUserInfoInvalidJSON Kind = "userinfo_invalid_json"

	// KindMissingCallbackParams is returned when a callback lacks code or state
	KindMissingCallbackParams Kind = "missing_callback_params"

	// KindAuthorizationDenied is returned when the provider redirected back with an error
	KindAuthorizationDenied Kind = "authorization_denied"

	// KindMissingEmail is returned when a user-info payload has no usable email
	KindMissingEmail Kind = "missing_email"

	// KindTransportInvalidURL is returned when a request URL is not absolute
	KindTransportInvalidURL Kind = "transport_invalid_url"

	// KindTransportInvalidURLScheme is returned when a request URL is not http or https
	KindTransportInvalidURLScheme Kind = "transport_invalid_url_scheme"

	// KindTransportInvalidHeader is returned when a header name or value could split the request
	KindTransportInvalidHeader Kind = "transport_invalid_header"

	// KindTransportFailed is returned when the network exchange could not be completed
	KindTransportFailed Kind = "transport_failed"
)

// Error represents an error in the authentication flow
type Error struct {
	// Kind is the error code
	Kind Kind

	// Message is the error message
	Message string

	// Field names the offending configuration field, if any
	Field string

	// Status is the HTTP status returned by the provider, if any
	Status int

	// Reason is a finer-grained code for transport failures (e.g. "timeout")
	Reason string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the stable machine-readable code for the error.
func (e *Error) Code() string {
	return string(e.Kind)
}

// New creates a new error
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// Newf creates a new error with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...), nil)
}

// NewConfigError creates a configuration error naming the offending field
func NewConfigError(field, message string) *Error {
	return &Error{
		Kind:    KindConfigInvalid,
		Message: message,
		Field:   field,
	}
}

// NewStatusError creates an error for a provider response with the given HTTP status
func NewStatusError(kind Kind, status int, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Status:  status,
	}
}

// NewTransportError creates a network-level failure with a stable reason code
func NewTransportError(reason, message string, cause error) *Error {
	return &Error{
		Kind:    KindTransportFailed,
		Message: message,
		Reason:  reason,
		Cause:   cause,
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTransport reports whether err originates in the outbound HTTP transport
func IsTransport(err error) bool {
	switch KindOf(err) {
	case KindTransportInvalidURL, KindTransportInvalidURLScheme, KindTransportInvalidHeader, KindTransportFailed:
		return true
	default:
		return false
	}
}
