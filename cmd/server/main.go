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

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"payment-tracker/internal/auth"
	"payment-tracker/internal/config"
	"payment-tracker/internal/handlers"
	"payment-tracker/internal/log"
	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

const sessionCleanupInterval = time.Hour

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(log.Config{Level: cfg.Level(), Component: log.ComponentApp, Output: os.Stdout})
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := bootstrap(ctx, db, cfg, logger.WithComponent(log.ComponentStorage)); err != nil {
		return err
	}

	proxies, err := log.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	guard := auth.NewGuard(auth.GuardConfig{Lockout: cfg.LoginLockout})
	defer guard.Stop()

	h := handlers.NewHandlers(db, handlers.Options{
		SecureCookie:    cfg.SecureCookie,
		SessionDuration: cfg.SessionDuration,
		Guard:           guard,
		Logger:          logger.WithComponent(log.ComponentHTTP),
		TrustedProxies:  proxies,
	})

	go cleanSessions(ctx, db, logger.WithComponent(log.ComponentScheduler), sessionCleanupInterval)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        setupRouter(h, logger.WithComponent(log.ComponentHTTP), cfg.CORSOrigins),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting payment tracker", log.FieldOperation, log.OpStartup, "port", cfg.Port, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received", log.FieldOperation, log.OpShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// setupRouter wraps the API mux with request logging and, when origins are
// configured, CORS.
func setupRouter(h *handlers.Handlers, logger *log.Logger, origins []string) http.Handler {
	var handler http.Handler = h.Routes()
	if len(origins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", log.RequestIDHeader},
			ExposedHeaders:   []string{"Content-Disposition", "Retry-After", log.RequestIDHeader},
			AllowCredentials: true,
		}).Handler(handler)
	}
	return log.Middleware(logger)(handler)
}

// bootstrap creates the configured administrator and the default categories.
func bootstrap(ctx context.Context, db *storage.DB, cfg *config.Config, logger *log.Logger) error {
	if cfg.AdminUser != "" {
		_, err := db.GetUserByLogin(ctx, cfg.AdminUser)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			hash, err := auth.HashPassword(cfg.AdminPassword)
			if err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}
			admin, err := db.CreateUser(ctx, &models.User{
				Login:        cfg.AdminUser,
				PasswordHash: hash,
				FullName:     cfg.AdminFullName,
				Role:         models.RoleAdmin,
			})
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			logger.Info("administrator created", log.FieldOperation, log.OpSeed, log.FieldUserID, admin.ID, log.FieldLogin, admin.Login)
		case err != nil:
			return fmt.Errorf("look up admin: %w", err)
		}
	}

	if cfg.SeedCategories {
		n, err := db.SeedCategories(ctx, models.DefaultCategories)
		if err != nil {
			return fmt.Errorf("seed categories: %w", err)
		}
		if n > 0 {
			logger.Info("default categories seeded", log.FieldOperation, log.OpSeed, log.FieldCount, n)
		}
	}
	return nil
}

// cleanSessions removes expired sessions until ctx is done.
func cleanSessions(ctx context.Context, db *storage.DB, logger *log.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		n, err := db.CleanExpiredSessions(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warn("session cleanup failed", log.FieldOperation, log.OpCleanup, log.FieldError, err)
		} else if n > 0 {
			logger.Info("expired sessions removed", log.FieldOperation, log.OpCleanup, log.FieldCount, n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
