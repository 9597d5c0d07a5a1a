// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authflow implements the relying-party side of the OAuth 2.0
// Authorization Code grant with PKCE (RFC 6749, RFC 7636).
//
// A Client holds the validated Config and the outbound Transport and is shared
// by every login attempt. A Flow binds a Client to one browser session: it
// builds the authorization URL, persists the state and code verifier in the
// session.Store, and later verifies the callback, exchanges the code and
// fetches the user's profile.
//
//	cfg, err := authflow.ConfigFromMap(map[string]any{
//		"clientId":     "my-client",
//		"authorizeUrl": "https://idp.example/oauth/authorize",
//		"tokenUrl":     "https://idp.example/oauth/token",
//		"userInfoUrl":  "https://idp.example/oauth/userinfo",
//		"redirectUri":  "https://app.example/callback",
//	})
//	client, err := authflow.NewClient(cfg)
//
//	// login handler
//	req, err := client.NewFlow(store).BuildAuthorizationURL(ctx)
//	http.Redirect(w, r, req.URL, http.StatusFound)
//
//	// callback handler
//	outcome, err := client.NewFlow(store).HandleCallback(ctx, r.URL.Query(), true)
//
// The package never retries and never logs unless a logger is supplied with
// WithLogger. Tokens, verifiers and state values are never logged.
package authflow
