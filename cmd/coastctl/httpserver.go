package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusHTTPServer runs internal/statusapi's handler on a background
// goroutine and stops it gracefully alongside the campaign. Grounded on
// the teacher's cmd/api/main.go signal-driven shutdown: start the
// listener in a goroutine, Shutdown(ctx) on the way out.
type statusHTTPServer struct {
	addr    string
	handler http.Handler
	srv     *http.Server
}

func (s *statusHTTPServer) start(logger *slog.Logger) {
	if s.addr == "" {
		return
	}
	s.srv = &http.Server{Addr: s.addr, Handler: s.handler}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("coastctl: status server stopped", "error", err)
		}
	}()
}

func (s *statusHTTPServer) stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
