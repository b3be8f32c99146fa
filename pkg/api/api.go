// Package api provides the token-authenticated HTTP API server for Gantry.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 5 * time.Minute // Updates can take a while.
	serverIdleTimeout  = 2 * time.Minute
	shutdownTimeout    = 5 * time.Second
)

// HTTPServer abstracts the HTTP server for testing.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// API represents the HTTP API server for Gantry.
type API struct {
	Token       string
	Addr        string
	hasHandlers bool
	mux         *http.ServeMux // Custom mux to avoid global collisions.
	server      HTTPServer     // Optional injected server for testing.
}

// New creates a new API instance. The server parameter is optional and
// allows dependency injection for testing.
func New(token, addr string, server ...HTTPServer) *API {
	var injectedServer HTTPServer
	if len(server) > 0 {
		injectedServer = server[0]
	}

	api := &API{
		Token:  token,
		Addr:   addr,
		mux:    http.NewServeMux(),
		server: injectedServer,
	}
	logrus.WithField("addr", api.Addr).Debug("Initialized new API instance")

	return api
}

// RegisterFunc registers a token-authenticated HTTP handler function for the
// given path.
func (a *API) RegisterFunc(path string, handler func(http.ResponseWriter, *http.Request)) {
	a.mux.HandleFunc(path, a.RequireToken(handler))
	a.hasHandlers = true
}

// RegisterHandler registers a token-authenticated HTTP handler for the given
// path.
func (a *API) RegisterHandler(path string, handler http.Handler) {
	a.mux.Handle(path, a.RequireToken(handler.ServeHTTP))
	a.hasHandlers = true
}

// RequireToken wraps a handler function with bearer token authentication.
func (a *API) RequireToken(handler func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") ||
			strings.TrimPrefix(auth, "Bearer ") != a.Token {
			logrus.WithField("path", r.URL.Path).Debug("Rejected unauthenticated API request")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		handler(w, r)
	}
}

// Start starts the HTTP API server. If block is true, it runs in the
// foreground until shutdown; otherwise it runs in the background and
// shuts down when the context is cancelled.
func (a *API) Start(ctx context.Context, block bool) error {
	if !a.hasHandlers {
		logrus.Info("No handlers registered, skipping API start")

		return nil
	}

	if a.Token == "" {
		logrus.Fatal("API token is empty or unset")
	}

	server := a.server
	if server == nil {
		server = &http.Server{
			Addr:              a.Addr,
			Handler:           a.mux,
			ReadTimeout:       serverReadTimeout,
			WriteTimeout:      serverWriteTimeout,
			IdleTimeout:       serverIdleTimeout,
			ReadHeaderTimeout: serverReadTimeout,
			BaseContext:       func(_ net.Listener) context.Context { return ctx },
		}
	}

	logrus.WithField("addr", a.Addr).Info("Starting HTTP API server")

	if block {
		return RunHTTPServer(ctx, server)
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("HTTP server failed")
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Failed to shutdown server")
		}
	}()

	return nil
}

// RunHTTPServer starts the HTTP server and handles graceful shutdown when
// the context is cancelled.
func RunHTTPServer(ctx context.Context, server HTTPServer) error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		return nil
	}
}
