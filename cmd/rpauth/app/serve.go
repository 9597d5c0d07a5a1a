// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/rpauth/pkg/logger"
	"github.com/stacklok/rpauth/pkg/rpserver"
	"github.com/stacklok/rpauth/pkg/session"
)

const (
	sessionBackendMemory = "memory"
	sessionBackendRedis  = "redis"
)

type serveOptions struct {
	listen         string
	secureCookie   bool
	sessionBackend string
	redisAddr      string
	redisUsername  string
	redisPassword  string
	redisDB        int
	redisPrefix    string
	sessionTTL     time.Duration
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo relying party",
		Long: `Starts a web server with /login and /callback endpoints that run the full
Authorization Code + PKCE flow, plus /healthz and Prometheus /metrics.
The configured redirect URI must point at this server's /callback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Ensure server is shutdown gracefully on Ctrl+C.
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client, err := newClient(v)
			if err != nil {
				return err
			}

			sessions, closeSessions, err := opts.sessionProvider(cmd)
			if err != nil {
				return err
			}
			defer closeSessions()

			srv, err := rpserver.New(rpserver.Options{
				Client:       client,
				Sessions:     sessions,
				SecureCookie: opts.secureCookie,
				Logger:       logger.Named("rpserver"),
			})
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", opts.listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", opts.listen, err)
			}
			logger.Infow("starting relying party", "address", ln.Addr().String(), "sessions", opts.sessionBackend)

			if err := rpserver.Serve(ctx, ln, srv); err != nil {
				return err
			}
			logger.Info("relying party stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", "127.0.0.1:8080", "Address to listen on")
	cmd.Flags().BoolVar(&opts.secureCookie, "secure-cookie", false, "Mark the session cookie Secure (enable behind TLS)")
	cmd.Flags().StringVar(&opts.sessionBackend, "session-backend", sessionBackendMemory, "Session backend: memory or redis")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "Redis address (host:port)")
	cmd.Flags().StringVar(&opts.redisUsername, "redis-username", "", "Redis ACL username")
	cmd.Flags().StringVar(&opts.redisPassword, "redis-password", "", "Redis password")
	cmd.Flags().IntVar(&opts.redisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().StringVar(&opts.redisPrefix, "redis-prefix", session.DefaultKeyPrefix, "Redis key prefix for sessions")
	cmd.Flags().DurationVar(&opts.sessionTTL, "session-ttl", session.DefaultTTL, "Lifetime of a pending login in the session store")

	return cmd
}

func (o *serveOptions) sessionProvider(cmd *cobra.Command) (session.Provider, func(), error) {
	switch o.sessionBackend {
	case sessionBackendMemory:
		return session.NewMemoryProvider(session.WithMemoryTTL(o.sessionTTL)), func() {}, nil
	case sessionBackendRedis:
		p, err := session.NewRedisProvider(cmd.Context(), session.RedisConfig{
			Addr:      o.redisAddr,
			Username:  o.redisUsername,
			Password:  o.redisPassword,
			DB:        o.redisDB,
			KeyPrefix: o.redisPrefix,
			TTL:       o.sessionTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Warnw("failed to close redis client", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q (want %s or %s)",
			o.sessionBackend, sessionBackendMemory, sessionBackendRedis)
	}
}
