package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultWriteTimeout = 45 * time.Second

// CheckoutWriteTimeout is the write deadline that lets a checkout event finish:
// the request budget plus the order and payment calls one event can run back
// to back, each bounded by callTimeout.
func CheckoutWriteTimeout(requestTimeout, callTimeout time.Duration) time.Duration {
	return requestTimeout + 2*callTimeout
}

// Server runs the storefront gateway until its context ends.
type Server struct {
	srv             *http.Server
	sessions        *Registry
	shutdownTimeout time.Duration
	log             zerolog.Logger
}

// NewServer serves handler on addr. A zero writeTimeout uses 45s.
func NewServer(addr string, handler http.Handler, sessions *Registry, writeTimeout, shutdownTimeout time.Duration, log zerolog.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		sessions:        sessions,
		shutdownTimeout: shutdownTimeout,
		log:             log.With().Str("component", "gateway").Logger(),
	}
}

// WriteTimeout is the per-response write deadline.
func (s *Server) WriteTimeout() time.Duration { return s.srv.WriteTimeout }

// Run listens on the configured address and shuts down gracefully when ctx is
// cancelled. Open checkout sessions are closed on the way out.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("http server starting")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(shutdownCtx)
	if s.sessions != nil {
		s.sessions.Close()
	}
	<-errCh
	if err != nil {
		return err
	}
	s.log.Info().Msg("server exited")
	return nil
}
