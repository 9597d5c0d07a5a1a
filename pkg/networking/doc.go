// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package networking provides the HTTP plumbing used to talk to OAuth
// endpoints: a hardened *http.Client builder and a small form/GET client
// that returns status and body without retrying or following redirects.
package networking
