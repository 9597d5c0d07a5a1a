// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
	"github.com/stacklok/rpauth/pkg/session"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func providerArgs(base string) []string {
	return []string{
		"--client-id", "cli",
		"--authorize-url", base + "/authorize",
		"--token-url", base + "/token",
		"--userinfo-url", base + "/userinfo",
		"--redirect-uri", "http://127.0.0.1:8080/callback",
		"--allow-insecure-http",
	}
}

func newCLIProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code_verifier") != "cli-verifier" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"cli-access","refresh_token":"cli-refresh","expires_in":30}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"upn":"Someone@Example.com","privilege_level":"4"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthorizeURLCmd(t *testing.T) {
	t.Parallel()

	out, err := runCmd(t, append([]string{"authorize-url",
		"--state", "cli-state", "--param", "prompt=consent"},
		providerArgs("http://localhost:9000")...)...)
	require.NoError(t, err)

	var decoded authorizeURLOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "cli-state", decoded.State)
	assert.NotEmpty(t, decoded.CodeVerifier)

	u, err := url.Parse(decoded.URL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "consent", u.Query().Get("prompt"))
	assert.Equal(t, decoded.CodeChallenge, u.Query().Get("code_challenge"))
}

func TestAuthorizeURLCmd_ConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rpauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
clientId: from-file
authorizeUrl: https://idp.example/authorize
tokenUrl: https://idp.example/token
redirectUri: https://app.example/callback
scope: openid
`), 0600))

	out, err := runCmd(t, "authorize-url", "--config", path)
	require.NoError(t, err)

	var decoded authorizeURLOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	u, err := url.Parse(decoded.URL)
	require.NoError(t, err)
	assert.Equal(t, "from-file", u.Query().Get("client_id"))
	assert.Equal(t, "openid", u.Query().Get("scope"))
}

func TestAuthorizeURLCmd_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := runCmd(t, "authorize-url",
		"--client-id", "x",
		"--authorize-url", "http://idp.example/authorize",
		"--token-url", "https://idp.example/token",
		"--redirect-uri", "https://app.example/callback")

	var authErr *autherrors.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "authorizeUrl", authErr.Field)
}

func TestExchangeCmd(t *testing.T) {
	t.Parallel()

	provider := newCLIProvider(t)

	out, err := runCmd(t, append([]string{"exchange", "--code", "c", "--code-verifier", "cli-verifier"},
		providerArgs(provider.URL)...)...)
	require.NoError(t, err)
	assert.NotContains(t, out, "cli-access")
	assert.Contains(t, out, "REDACTED")

	out, err = runCmd(t, append([]string{"exchange", "--code", "c", "--code-verifier", "cli-verifier", "--show-tokens"},
		providerArgs(provider.URL)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "cli-access")

	_, err = runCmd(t, append([]string{"exchange", "--code", "c", "--code-verifier", "wrong"},
		providerArgs(provider.URL)...)...)
	assert.True(t, autherrors.Is(err, autherrors.KindTokenExchangeFailed))
}

func TestRefreshCmd_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := runCmd(t, append([]string{"refresh"}, providerArgs("http://localhost:9000")...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh-token")
}

func TestUserInfoCmd(t *testing.T) {
	t.Parallel()

	provider := newCLIProvider(t)

	out, err := runCmd(t, append([]string{"userinfo", "--access-token", "cli-access", "--normalize"},
		providerArgs(provider.URL)...)...)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"email":"someone@example.com","privilege_level":4,"role":null,"raw":{"upn":"Someone@Example.com","privilege_level":"4"}}`,
		out)

	out, err = runCmd(t, append([]string{"userinfo", "--access-token", "cli-access"},
		providerArgs(provider.URL)...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"upn":"Someone@Example.com","privilege_level":"4"}`, out)
}

func TestServeCmd_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := runCmd(t, append([]string{"serve", "--session-backend", "etcd", "--listen", "127.0.0.1:0"},
		providerArgs("http://localhost:9000")...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown session backend")
}

func TestServeOptions_SessionProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{name: "memory", backend: sessionBackendMemory},
		{name: "unknown", backend: "etcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := &serveOptions{sessionBackend: tt.backend, sessionTTL: time.Minute}
			p, closeFn, err := opts.sessionProvider(&cobra.Command{})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(closeFn)
			assert.IsType(t, &session.MemoryProvider{}, p)
		})
	}
}
