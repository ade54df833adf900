package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"shoe-tracker/internal/config"
	"shoe-tracker/internal/logging"
	"shoe-tracker/internal/store"
	"shoe-tracker/internal/tracker"
	httptransport "shoe-tracker/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Server.StoreBackend).Msg("store init failed")
	}
	defer st.Close()

	mgr := tracker.New(st, tracker.Options{Decks: cfg.Server.Decks})
	if err := mgr.SetActive(ctx, cfg.Server.InitialShoe); err != nil {
		log.Fatal().Err(err).Str("shoe", cfg.Server.InitialShoe).Msg("activate initial shoe failed")
	}

	r := httptransport.NewRouter(st, mgr, cfg.Server)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("backend", cfg.Server.StoreBackend).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	// Let a running shuffle land its swap before the store closes.
	if err := mgr.WaitForShuffle(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shuffle did not complete before shutdown")
	}
}
