// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
)

// Stable reason codes carried by transport_failed errors.
const (
	ReasonTimeout               = "timeout"
	ReasonCanceled              = "canceled"
	ReasonDNSLookupFailed       = "dns_lookup_failed"
	ReasonConnectionRefused     = "connection_refused"
	ReasonPrivateAddressBlocked = "private_address_blocked"
	ReasonTLSVerificationFailed = "tls_verification_failed"
	ReasonTLSHandshakeFailed    = "tls_handshake_failed"
	ReasonBodyReadFailed        = "body_read_failed"
	ReasonResponseTooLarge      = "response_too_large"
	ReasonRequestFailed         = "request_failed"
)

// FailureReason maps a client error to one of the stable reason codes.
func FailureReason(ctx context.Context, err error) string {
	var (
		dnsErr       *net.DNSError
		unknownCA    x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		certInvalid  x509.CertificateInvalidError
		verifyErr    *tls.CertificateVerificationError
		recordHdrErr tls.RecordHeaderError
		netErr       net.Error
	)

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrPrivateAddress):
		return ReasonPrivateAddressBlocked
	case errors.As(err, &dnsErr):
		return ReasonDNSLookupFailed
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReasonConnectionRefused
	case errors.As(err, &verifyErr), errors.As(err, &unknownCA),
		errors.As(err, &hostnameErr), errors.As(err, &certInvalid):
		return ReasonTLSVerificationFailed
	case errors.As(err, &recordHdrErr):
		return ReasonTLSHandshakeFailed
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	default:
		return ReasonRequestFailed
	}
}

func classifyFailure(ctx context.Context, method string, target *url.URL, err error) error {
	reason := FailureReason(ctx, err)
	return autherrors.NewTransportError(reason,
		fmt.Sprintf("%s %s failed (%s)", method, redactURL(target), reason), unwrapURLError(err))
}

// unwrapURLError drops the *url.Error wrapper, which repeats the full URL
// (including any query string) in its message.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
