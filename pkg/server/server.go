// Package server exposes gateways over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/pario-ai/askgate/pkg/gateway"
)

// Server is the askgate HTTP front end.
type Server struct {
	listen   string
	gateways map[string]*gateway.Gateway
	log      logrus.FieldLogger
	router   chi.Router
}

// New creates a Server routing /v1/{route} to each gateway by its route name.
func New(listen string, log logrus.FieldLogger, gateways ...*gateway.Gateway) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		listen:   listen,
		gateways: make(map[string]*gateway.Gateway, len(gateways)),
		log:      log,
	}
	for _, g := range gateways {
		s.gateways[g.Route()] = g
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log))

	r.Get("/health", s.handleHealth)
	for route, g := range s.gateways {
		r.Post("/v1/"+route, s.handleAsk(g))
		r.Get("/v1/"+route+"/metrics", s.handleMetrics(g))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("listen", s.listen).Info("askgate listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
