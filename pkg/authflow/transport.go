// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authflow

import (
	"context"
	"net/url"

	"github.com/stacklok/rpauth/pkg/networking"
)

// Transport performs the outbound requests of a flow.
// *networking.Client is the production implementation.
//
//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks -source=transport.go Transport
type Transport interface {
	PostForm(ctx context.Context, rawURL string, fields url.Values, headers map[string]string) (*networking.Response, error)
	Get(ctx context.Context, rawURL string, headers map[string]string) (*networking.Response, error)
}

var _ Transport = (*networking.Client)(nil)
