package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/mkotov/splitton/internal/auth"
	"github.com/mkotov/splitton/internal/config"
	"github.com/mkotov/splitton/internal/handlers"
	"github.com/mkotov/splitton/internal/middleware"
	"github.com/mkotov/splitton/internal/notify"
	"github.com/mkotov/splitton/internal/settlement"
	"github.com/mkotov/splitton/internal/storage/sqlite"
	"github.com/mkotov/splitton/internal/ton"
	"github.com/mkotov/splitton/pkg/logging"
)

const (
	sessionDuration = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.DBPath)

	// Outbound collaborators: chain indexer and Telegram notifications.
	indexer := ton.NewIndexerClient(cfg.IndexerBaseURL, cfg.IndexerAPIKey, cfg.IndexerTimeout)

	hub := notify.NewHub()
	notifiers := notify.Multi{hub}
	if bot, err := tgbotapi.NewBotAPI(cfg.BotToken); err != nil {
		// The bot is best-effort: settlement works without it, so a bad
		// token only costs chat notifications.
		slog.Warn("telegram bot unavailable, chat notifications disabled", "error", err)
	} else {
		notifiers = append(notifiers, notify.NewTelegramNotifier(bot, store))
	}

	// Settlement core.
	issuer := settlement.NewIssuer(store)
	reconciler := settlement.NewReconciler(store, indexer, notifiers)
	monitor := settlement.NewMonitor(reconciler, cfg.FastInterval, cfg.DetailedInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)
	defer monitor.Stop()

	// HTTP surface.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, sessionDuration)
	authHandler := handlers.NewAuthHandler(store, jwtManager, cfg.BotToken)
	billHandler := handlers.NewBillHandler(store)
	paymentHandler := handlers.NewPaymentHandler(store, issuer, reconciler)
	eventsHandler := handlers.NewEventsHandler(store, hub)
	adminHandler := handlers.NewAdminHandler(reconciler, cfg.StaleAge)

	router := mux.NewRouter()
	router.Use(middleware.Logging)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/api/auth/telegram", authHandler.TelegramLogin).Methods("POST")
	// Provider callbacks authenticate by correlation token, not session.
	router.HandleFunc("/api/payments/webhook/{provider}", paymentHandler.Webhook).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireAuth(jwtManager))
	api.HandleFunc("/users/me/wallet", authHandler.UpdateWallet).Methods("PUT")
	api.HandleFunc("/bills", billHandler.Create).Methods("POST")
	api.HandleFunc("/bills/{billID}", billHandler.Get).Methods("GET")
	api.HandleFunc("/bills/{billID}", billHandler.Delete).Methods("DELETE")
	api.HandleFunc("/bills/{billID}/events", eventsHandler.Stream).Methods("GET")
	api.HandleFunc("/payments/intent", paymentHandler.CreateIntent).Methods("POST")
	api.HandleFunc("/payments/{paymentID}", paymentHandler.Get).Methods("GET")
	api.HandleFunc("/payments/{paymentID}/check", paymentHandler.Check).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(cfg.AdminTelegramIDs))
	admin.HandleFunc("/payments/stale", adminHandler.ListStale).Methods("GET")
	admin.HandleFunc("/payments/stale", adminHandler.SweepStale).Methods("DELETE")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)

	server := &http.Server{
		Addr:         cfg.Bind,
		Handler:      corsHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
	}

	go func() {
		slog.Info("server starting", "address", cfg.Bind)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
