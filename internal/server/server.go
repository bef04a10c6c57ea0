package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"storefront/internal/common/logging"
)

// Server represents an HTTP server
type Server struct {
	srv      *http.Server
	tlsCert  string
	tlsKey   string
	listener net.Listener
}

// New creates a new server instance. port may be "0" to pick a free port.
func New(handler http.Handler, port, tlsCert, tlsKey string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
	}
}

// Start binds the listen address and serves in the background. Bind errors
// are returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	serve := func() error { return s.srv.Serve(ln) }
	if s.tlsCert != "" && s.tlsKey != "" {
		s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		serve = func() error { return s.srv.ServeTLS(ln, s.tlsCert, s.tlsKey) }
	}

	go func() {
		if err := serve(); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server stopped unexpectedly", err, logging.String("addr", s.srv.Addr))
		}
	}()

	logging.Info("HTTP server listening", logging.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.srv.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
