package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/micartera/backend/src/config"
	"github.com/username/micartera/backend/src/database"
	"github.com/username/micartera/backend/src/handlers"
	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/security"
	"github.com/username/micartera/backend/src/services"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("MiCartera backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if len(config.Cfg.CSRFAuthKey) < 32 {
		logger.L.Error("CSRF_AUTH_KEY must be at least 32 bytes long.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	emailService := services.NewEmailService()

	transactionService := services.NewTransactionService()
	quoteService := services.NewQuoteService(config.Cfg.QuoteCacheTTL)
	fxService := services.NewFXService(quoteService, config.Cfg.FallbackEurPerUsd, config.Cfg.QuoteCacheTTL)
	portfolioService := services.NewPortfolioService(transactionService, quoteService, fxService, reportCache)
	transactionService.SetPortfolioService(portfolioService)
	importService := services.NewImportService(transactionService, fxService)
	alertService := services.NewAlertService(transactionService, quoteService, emailService, config.Cfg.AlertCheckInterval)

	userHandler := handlers.NewUserHandler(authService)
	txHandler := handlers.NewTransactionHandler(transactionService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	exportHandler := handlers.NewExportHandler(portfolioService)
	uploadHandler := handlers.NewUploadHandler(importService)
	quoteHandler := handlers.NewQuoteHandler(quoteService, alertService)

	if config.Cfg.GoogleClientID != "" {
		handlers.InitializeGoogleOAuthConfig()
	} else {
		logger.L.Info("Google OAuth not configured, sign-in with Google disabled.")
	}

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	// Public auth routes.
	apiRouter.HandleFunc("GET /api/auth/csrf", handlers.GetCSRFToken)
	apiRouter.HandleFunc("POST /api/auth/register", userHandler.RegisterUserHandler)
	apiRouter.HandleFunc("POST /api/auth/login", userHandler.LoginUserHandler)
	apiRouter.HandleFunc("POST /api/auth/refresh", userHandler.RefreshTokenHandler)
	apiRouter.Handle("POST /api/auth/logout", userHandler.AuthMiddleware(http.HandlerFunc(userHandler.LogoutUserHandler)))
	apiRouter.HandleFunc("GET /api/auth/google/login", userHandler.HandleGoogleLogin)
	apiRouter.HandleFunc("GET /api/auth/google/callback", userHandler.HandleGoogleCallback)

	// Protected routes: CSRF double-submit plus bearer token.
	csrfProtection := handlers.CSRFMiddleware()
	protected := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(userHandler.AuthMiddleware(handler))
	}

	apiRouter.Handle("GET /api/transactions", protected(txHandler.HandleList))
	apiRouter.Handle("POST /api/transactions", protected(txHandler.HandleCreate))
	apiRouter.Handle("PUT /api/transactions/{id}", protected(txHandler.HandleUpdate))
	apiRouter.Handle("DELETE /api/transactions/{id}", protected(txHandler.HandleDelete))
	apiRouter.Handle("DELETE /api/transactions/all", protected(txHandler.HandleDeleteAll))

	apiRouter.Handle("POST /api/upload", protected(uploadHandler.HandleUpload))

	apiRouter.Handle("GET /api/portfolio/positions", protected(portfolioHandler.HandleGetPositions))
	apiRouter.Handle("GET /api/portfolio/valuations", protected(portfolioHandler.HandleGetValuations))
	apiRouter.Handle("GET /api/portfolio/realized", protected(portfolioHandler.HandleGetRealizedReport))
	apiRouter.Handle("GET /api/portfolio/realized/export", protected(exportHandler.HandleExportRealizedCSV))
	apiRouter.Handle("GET /api/portfolio/closed", protected(portfolioHandler.HandleGetClosedTransactions))

	apiRouter.Handle("GET /api/symbols/search", protected(quoteHandler.HandleSearchSymbol))
	apiRouter.Handle("POST /api/alerts/check", protected(quoteHandler.HandleCheckAlerts))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "MiCartera backend is running"})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 30)
	finalHandler := handlers.CORSMiddleware(config.Cfg.FrontendBaseURL)(
		handlers.RateLimitMiddleware(limiter)(rootMux))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go alertService.RunSweep(ctx)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.L.Info("Shutdown signal received, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped gracefully.")
}
