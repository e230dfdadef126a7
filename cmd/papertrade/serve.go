package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"papertrade/internal/api"
	"papertrade/internal/config"
	"papertrade/internal/ledger"
	"papertrade/internal/metrics"
	"papertrade/internal/repository"
	"papertrade/internal/repository/memory"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := ledger.NewEngine(store, log.With().Str("component", "ledger").Logger())
	server := api.NewServer(cfg.HTTP, engine, metrics.NewRegistry(), log.With().Str("component", "http").Logger())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	switch storeKind {
	case "postgres":
		db, err := repository.NewDatabase(ctx, cfg.Database.URL, log.With().Str("component", "repository").Logger())
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "memory":
		store := memory.New()
		seedDevData(store)
		log.Warn().Msg("using in-memory store, state is not durable")
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", storeKind)
	}
}

// seedDevData gives the memory store a few quoted instruments so the
// API is usable out of the box.
func seedDevData(store *memory.Store) {
	seed := []struct {
		ticker, name, price string
	}{
		{"AAPL", "Apple Inc.", "231.50"},
		{"MSFT", "Microsoft Corporation", "512.04"},
		{"VTI", "Vanguard Total Stock Market ETF", "308.22"},
	}
	for _, row := range seed {
		inst := store.AddInstrument(row.ticker, row.name)
		store.SetPrice(inst.Id, decimal.RequireFromString(row.price))
	}
}
