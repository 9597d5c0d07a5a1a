// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authflow

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"dario.cat/mergo"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
	"github.com/stacklok/rpauth/pkg/identity"
	"github.com/stacklok/rpauth/pkg/session"
)

// Session keys under which the pending authorization is persisted.
const (
	SessionKeyState        = "oauth_state"
	SessionKeyCodeVerifier = "oauth_code_verifier"
)

// FlowState is the lifecycle position of a Flow.
type FlowState int

// Flow states
const (
	FlowInitiated FlowState = iota
	FlowAwaitingCallback
	FlowStateVerified
	FlowTokensExchanged
	FlowUserInfoFetched
	FlowFailed
)

// String returns the state name.
func (s FlowState) String() string {
	switch s {
	case FlowInitiated:
		return "initiated"
	case FlowAwaitingCallback:
		return "awaiting_callback"
	case FlowStateVerified:
		return "state_verified"
	case FlowTokensExchanged:
		return "tokens_exchanged"
	case FlowUserInfoFetched:
		return "userinfo_fetched"
	case FlowFailed:
		return "failed"
	default:
		return fmt.Sprintf("FlowState(%d)", int(s))
	}
}

// StateObserver is notified of every state transition.
type StateObserver func(from, to FlowState)

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithStateObserver registers a transition hook.
func WithStateObserver(o StateObserver) FlowOption {
	return func(f *Flow) {
		f.observer = o
	}
}

// AuthorizationRequest is the result of BuildAuthorizationURL.
type AuthorizationRequest struct {
	URL           string
	State         string
	CodeVerifier  string
	CodeChallenge string
}

// AuthResult holds tokens and the raw user-info payload.
type AuthResult struct {
	Tokens *TokenSet
	User   map[string]any
}

// CallbackOutcome is the terminal artifact of a completed callback.
type CallbackOutcome struct {
	Tokens  *TokenSet
	User    *identity.Identity
	RawUser map[string]any
}

// Flow drives one login attempt for one browser session.
//
// The redirect and the callback normally happen in different requests, so a
// Flow built for the callback starts in FlowInitiated. Transitions are
// recorded and reported, not enforced.
type Flow struct {
	client   *Client
	store    session.Store
	observer StateObserver

	mu    sync.Mutex
	state FlowState
}

// NewFlow binds a flow to a session store. A nil store disables persistence:
// state checks then always fail and the code verifier must be passed explicitly.
func (c *Client) NewFlow(store session.Store, opts ...FlowOption) *Flow {
	f := &Flow{
		client: c,
		store:  store,
		state:  FlowInitiated,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) transition(to FlowState) {
	f.mu.Lock()
	from := f.state
	f.state = to
	f.mu.Unlock()

	f.client.logger.Debug("flow state transition", "from", from.String(), "to", to.String())
	if f.observer != nil {
		f.observer(from, to)
	}
}

// fail records the failed state and returns err unchanged.
func (f *Flow) fail(err error) error {
	f.transition(FlowFailed)
	return err
}

// AuthorizationOption customizes BuildAuthorizationURL.
type AuthorizationOption func(*authorizationOptions)

type authorizationOptions struct {
	state        string
	codeVerifier string
	scope        string
	extra        map[string]string
	noPersist    bool
}

// WithState uses a caller-supplied state instead of a random one.
func WithState(state string) AuthorizationOption {
	return func(o *authorizationOptions) {
		o.state = state
	}
}

// WithCodeVerifier uses a caller-supplied PKCE verifier.
func WithCodeVerifier(verifier string) AuthorizationOption {
	return func(o *authorizationOptions) {
		o.codeVerifier = verifier
	}
}

// WithScope overrides the configured default scope.
func WithScope(scope string) AuthorizationOption {
	return func(o *authorizationOptions) {
		o.scope = scope
	}
}

// WithExtraParams adds query parameters to the authorization URL.
// They are applied last and may override the standard parameters.
func WithExtraParams(params map[string]string) AuthorizationOption {
	return func(o *authorizationOptions) {
		if o.extra == nil {
			o.extra = make(map[string]string, len(params))
		}
		for k, v := range params {
			o.extra[k] = v
		}
	}
}

// WithoutPersist skips writing state and verifier to the session.
func WithoutPersist() AuthorizationOption {
	return func(o *authorizationOptions) {
		o.noPersist = true
	}
}

// BuildAuthorizationURL creates the provider redirect URL and, unless
// WithoutPersist is given, stores state and verifier in the session.
// It makes no network calls.
func (f *Flow) BuildAuthorizationURL(ctx context.Context, opts ...AuthorizationOption) (*AuthorizationRequest, error) {
	o := &authorizationOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := f.client.config
	state := o.state
	if state == "" {
		state = GenerateState()
	}
	verifier := o.codeVerifier
	if verifier == "" {
		verifier = GenerateCodeVerifier()
	}
	challenge := ComputeCodeChallenge(verifier)
	scope := o.scope
	if scope == "" {
		scope = cfg.Scope
	}

	if !o.noPersist && f.store != nil {
		if err := f.store.Set(ctx, SessionKeyState, state); err != nil {
			return nil, f.fail(fmt.Errorf("failed to persist state: %w", err))
		}
		if err := f.store.Set(ctx, SessionKeyCodeVerifier, verifier); err != nil {
			return nil, f.fail(fmt.Errorf("failed to persist code verifier: %w", err))
		}
	}

	params := map[string]string{
		"response_type":         "code",
		"client_id":             cfg.ClientID,
		"redirect_uri":          cfg.RedirectURI,
		"scope":                 scope,
		"state":                 state,
		"code_challenge":        challenge,
		"code_challenge_method": PKCEChallengeMethodS256,
	}
	if len(o.extra) > 0 {
		if err := mergo.Merge(&params, o.extra, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return nil, f.fail(fmt.Errorf("failed to merge authorization parameters: %w", err))
		}
	}

	query := make(url.Values, len(params))
	for k, v := range params {
		query.Set(k, v)
	}

	sep := "?"
	if strings.Contains(cfg.AuthorizeURL, "?") {
		sep = "&"
	}

	f.client.logger.Debug("built authorization URL",
		"authorize_endpoint", cfg.AuthorizeURL,
		"persisted", !o.noPersist && f.store != nil,
		"extra_params", len(o.extra),
	)
	f.transition(FlowAwaitingCallback)

	return &AuthorizationRequest{
		URL:           cfg.AuthorizeURL + sep + query.Encode(),
		State:         state,
		CodeVerifier:  verifier,
		CodeChallenge: challenge,
	}, nil
}

// AssertStateMatches compares state against the persisted value in constant time.
func (f *Flow) AssertStateMatches(ctx context.Context, state string) error {
	stored, ok, err := f.sessionValue(ctx, SessionKeyState)
	if err != nil {
		return f.fail(err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(state)) != 1 {
		f.client.logger.Warn("oauth state mismatch", "state_present", ok)
		return f.fail(autherrors.New(autherrors.KindStateMismatch,
			"The OAuth state did not match the session value", nil))
	}
	f.transition(FlowStateVerified)
	return nil
}

// ExchangeCodeForTokens redeems code at the token endpoint. An empty verifier
// means the one persisted in the session is used.
func (f *Flow) ExchangeCodeForTokens(ctx context.Context, code, verifier string) (*TokenSet, error) {
	if verifier == "" {
		stored, _, err := f.sessionValue(ctx, SessionKeyCodeVerifier)
		if err != nil {
			return nil, f.fail(err)
		}
		verifier = stored
	}
	if verifier == "" {
		return nil, f.fail(autherrors.New(autherrors.KindMissingCodeVerifier,
			"Missing code verifier; pass one explicitly or persist it in session.", nil))
	}

	tokens, err := f.client.exchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, f.fail(err)
	}
	f.transition(FlowTokensExchanged)
	return tokens, nil
}

// ExchangeCodeAndFetchUser exchanges code and fetches the raw user info
// without normalizing it.
func (f *Flow) ExchangeCodeAndFetchUser(ctx context.Context, code, verifier string) (*AuthResult, error) {
	tokens, err := f.ExchangeCodeForTokens(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	user, err := f.fetchUser(ctx, tokens)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: tokens, User: user}, nil
}

// HandleCallback runs the full callback: parameter check, state check, code
// exchange, user info and normalization. With clearPKCE the persisted state
// and verifier are removed once the network steps succeed, even if
// normalization then fails.
func (f *Flow) HandleCallback(ctx context.Context, query url.Values, clearPKCE bool) (*CallbackOutcome, error) {
	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		return nil, f.fail(autherrors.New(autherrors.KindMissingCallbackParams, "Missing code/state", nil))
	}

	if err := f.AssertStateMatches(ctx, state); err != nil {
		return nil, err
	}
	tokens, err := f.ExchangeCodeForTokens(ctx, code, "")
	if err != nil {
		return nil, err
	}
	rawUser, err := f.fetchUser(ctx, tokens)
	if err != nil {
		return nil, err
	}

	if clearPKCE {
		if err := f.ClearPKCESessionState(ctx); err != nil {
			return nil, f.fail(err)
		}
	}

	user, err := f.client.Normalize(rawUser)
	if err != nil {
		return nil, f.fail(err)
	}

	f.client.logger.Info("oauth callback completed",
		"has_privilege_level", user.HasPrivilegeLevel(),
		"has_refresh_token", tokens.HasRefreshToken(),
	)
	return &CallbackOutcome{Tokens: tokens, User: user, RawUser: rawUser}, nil
}

// ClearPKCESessionState removes the persisted state and verifier. It is
// idempotent and a no-op without a session store.
func (f *Flow) ClearPKCESessionState(ctx context.Context) error {
	if f.store == nil {
		return nil
	}
	if err := f.store.Delete(ctx, SessionKeyState, SessionKeyCodeVerifier); err != nil {
		return fmt.Errorf("failed to clear PKCE session state: %w", err)
	}
	return nil
}

func (f *Flow) fetchUser(ctx context.Context, tokens *TokenSet) (map[string]any, error) {
	user, err := f.client.GetUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, f.fail(err)
	}
	f.transition(FlowUserInfoFetched)
	return user, nil
}

func (f *Flow) sessionValue(ctx context.Context, key string) (string, bool, error) {
	if f.store == nil {
		return "", false, nil
	}
	v, ok, err := f.store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	return v, ok, nil
}

// CallbackError returns an authorization_denied error when the provider
// redirected back with an error parameter, and nil otherwise.
func CallbackError(query url.Values) error {
	code := query.Get("error")
	if code == "" {
		return nil
	}
	msg := "Authorization denied by provider: " + code
	if desc := query.Get("error_description"); desc != "" {
		msg += ": " + desc
	}
	return &autherrors.Error{
		Kind:    autherrors.KindAuthorizationDenied,
		Message: msg,
		Reason:  code,
	}
}
