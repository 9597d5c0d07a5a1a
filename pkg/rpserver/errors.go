// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package rpserver

import (
	"log/slog"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
)

// HandlerWithError is an HTTP handler that can return an error.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// ErrorHandler converts a returned error into an HTTP response. 5xx errors
// are logged and answered with the generic status text; 4xx errors return
// their message.
func ErrorHandler(log *slog.Logger, fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		code := httperr.Code(err)
		if code < http.StatusBadRequest {
			code = http.StatusInternalServerError
		}

		if code >= http.StatusInternalServerError {
			log.Error("request failed", "path", r.URL.Path, "status", code, "error", err)
			http.Error(w, http.StatusText(code), code)
			return
		}
		http.Error(w, err.Error(), code)
	}
}

// withStatus attaches the HTTP status matching the error's kind.
func withStatus(err error) error {
	return httperr.WithCode(err, statusFor(err))
}

func statusFor(err error) int {
	switch autherrors.KindOf(err) {
	case autherrors.KindMissingCallbackParams,
		autherrors.KindStateMismatch,
		autherrors.KindMissingCodeVerifier:
		return http.StatusBadRequest
	case autherrors.KindAuthorizationDenied,
		autherrors.KindMissingEmail:
		return http.StatusForbidden
	case autherrors.KindTokenExchangeFailed,
		autherrors.KindTokenResponseInvalidJSON,
		autherrors.KindUserInfoRequestFailed,
		autherrors.KindUserInfoInvalidJSON,
		autherrors.KindTransportFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
