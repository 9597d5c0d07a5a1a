// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authflow

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/oauth2"
)

// PKCEChallengeMethodS256 is the PKCE challenge method using SHA-256 (RFC 7636).
const PKCEChallengeMethodS256 = "S256"

// stateBytes is the amount of randomness in a generated state token.
const stateBytes = 16

// GenerateState returns 16 random bytes, hex-encoded.
func GenerateState() string {
	b := make([]byte, stateBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateCodeVerifier returns a 43 character code_verifier per RFC 7636 Section 4.1.
func GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// ComputeCodeChallenge computes BASE64URL(SHA256(verifier)) without padding.
func ComputeCodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
