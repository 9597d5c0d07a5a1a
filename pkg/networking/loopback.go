// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"strings"
)

// loopbackHosts are the only hosts plaintext HTTP may be used with.
var loopbackHosts = []string{"localhost", "127.0.0.1", "::1"}

// IsLoopbackHost reports whether hostname is one of "localhost", "127.0.0.1"
// or "::1", compared case-insensitively. Other 127.0.0.0/8 addresses and
// names that merely resolve to loopback are not accepted.
//
// hostname is expected without a port, as returned by url.URL.Hostname,
// which also strips the brackets from "[::1]".
func IsLoopbackHost(hostname string) bool {
	normalized := strings.TrimSpace(hostname)
	for _, h := range loopbackHosts {
		if strings.EqualFold(normalized, h) {
			return true
		}
	}
	return false
}
