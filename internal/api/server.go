// Package api is the thin HTTP adapter over the ledger engine.
// Authentication is an external collaborator: requests arrive with an
// already-authenticated user id in the X-User-ID header.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"papertrade/internal/config"
	"papertrade/internal/ledger"
	"papertrade/internal/metrics"
)

type Server struct {
	router  *mux.Router
	server  *http.Server
	engine  *ledger.Engine
	metrics *metrics.Registry
	log     zerolog.Logger
}

func NewServer(cfg config.HTTPConfig, engine *ledger.Engine, reg *metrics.Registry, log zerolog.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		engine:  engine,
		metrics: reg,
		log:     log,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.router.HandleFunc("/orders/buy", s.handleBuy).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/sell", s.handleSell).Methods(http.MethodPost)

	s.router.HandleFunc("/portfolios", s.handleListPortfolios).Methods(http.MethodGet)
	s.router.HandleFunc("/portfolios", s.handleCreatePortfolio).Methods(http.MethodPost)
	s.router.HandleFunc("/portfolios/switch", s.handleSwitchPortfolio).Methods(http.MethodPost)
	s.router.HandleFunc("/portfolios/current/holdings", s.handleHoldings).Methods(http.MethodGet)

	s.router.HandleFunc("/transactions/current", s.handleCurrentTransactions).Methods(http.MethodGet)
	s.router.HandleFunc("/transactions", s.handleAllTransactions).Methods(http.MethodGet)

	s.router.HandleFunc("/stocks/prices", s.handlePrices).Methods(http.MethodGet)
	s.router.HandleFunc("/stocks/{ticker}/price", s.handlePrice).Methods(http.MethodGet)

	s.router.HandleFunc("/admin/reset", s.handleReset).Methods(http.MethodPost)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
