package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/f3rmion/musig2-node/internal/log"
)

// NewRouter builds a router with the standard middleware chain.
func NewRouter() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	return router
}

func NewServer(addr string, router chi.Router) *Server {
	return &Server{
		router: router,
		httpServer: http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
}

type Server struct {
	router     chi.Router
	httpServer http.Server
}

func (s *Server) ListenAndServe() error {
	log.Infow("Starting API Server",
		"listen_addr", s.httpServer.Addr,
	)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
