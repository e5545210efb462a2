package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pair-trade-tracker-go/internal/alpaca"
	"pair-trade-tracker-go/internal/config"
	"pair-trade-tracker-go/internal/database"
	"pair-trade-tracker-go/internal/ledger"
	"pair-trade-tracker-go/internal/logger"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Connect to the ledger database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	store := ledger.NewStore(db)

	// Startup health check: repair trades whose pair no longer exists. This
	// never blocks startup, it only reports what was removed.
	removed, err := store.PurgeOrphanTrades(context.Background())
	if err != nil {
		log.Warn("Database health check failed", zap.Error(err))
	} else if removed > 0 {
		log.Warn("Removed orphaned trades during health check", zap.Int64("count", removed))
	} else {
		log.Info("Database health check passed")
	}

	// Price feed for live holdings valuation. Optional: without API keys the
	// holdings endpoint simply omits live values.
	feed := alpaca.NewRestClient(&cfg.Alpaca, log)
	if !feed.Configured() {
		log.Info("Alpaca API keys not configured, live valuation disabled")
	}

	svc := ledger.NewService(store, log, cfg.Trading.AllowFractionalShares)
	apiHandler := NewAPIHandler(log, svc, feed)

	mux := http.NewServeMux()
	apiHandler.Register(mux)

	// Static file serving for the tracker UI
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/templates/index.html")
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting web server", zap.String("address", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Web server failed", zap.Error(err))
	}
	log.Info("Server has been shut down.")
}
