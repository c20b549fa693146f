package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/crewchief/log"
)

type Server struct {
	srv *http.Server
	l   *log.Logger
}

// NewServer serves handler on addr with permissive CORS and h2c support.
func NewServer(addr string, handler *Handler) *Server {
	mux := http.NewServeMux()
	handler.Register(mux)
	return &Server{
		//nolint:gosec // streaming endpoint needs unlimited write timeout
		srv: &http.Server{
			Addr:              addr,
			Handler:           h2c.NewHandler(newCORS().Handler(mux), &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		},
		l: log.Default().Named("api.server"),
	}
}

// Start blocks until ctx is done or the server fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.l.Info("Starting HTTP server", log.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {

			return err
		}
		s.l.Info("HTTP server stopped")
		return nil
	}
}

func newCORS() *cors.Cors {
	// browser dashboards on any origin may poll and stream
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
