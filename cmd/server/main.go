package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/robfig/cron/v3"

	"bengkelpos/backend/internal/cache"
	"bengkelpos/backend/internal/config"
	"bengkelpos/backend/internal/httpapi"
	"bengkelpos/backend/internal/reminder"
	"bengkelpos/backend/internal/service"
	"bengkelpos/backend/internal/store"
	"bengkelpos/backend/internal/store/memory"
	pgstore "bengkelpos/backend/internal/store/postgres"
)

func runMigrations(databaseURL string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	loc := cfg.Location()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, loc)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded(loc)
		log.Println("repository: in-memory")
	}

	settingsCache := cache.SettingsCache(cache.NoopSettingsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSettingsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			settingsCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	svc := service.New(repo, settingsCache, time.Duration(cfg.SettingsTTLSeconds)*time.Second, loc)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	scheduler := cron.New(cron.WithLocation(loc))
	scanner := reminder.NewScanner(repo, loc)
	if _, err := scheduler.AddFunc(cfg.ReminderCronSpec, scanner.Run); err != nil {
		log.Fatalf("invalid REMINDER_CRON %q: %v", cfg.ReminderCronSpec, err)
	}
	if _, err := scheduler.AddFunc(cfg.ReconcileCronSpec, func() {
		jobCtx, jobCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer jobCancel()
		drifts, err := repo.ReconcileStock(jobCtx)
		if err != nil {
			log.Printf("[cron] stock reconcile failed: %v", err)
			return
		}
		if len(drifts) > 0 {
			log.Printf("[cron] stock reconcile found %d drifted products", len(drifts))
		}
	}); err != nil {
		log.Fatalf("invalid RECONCILE_CRON %q: %v", cfg.ReconcileCronSpec, err)
	}
	scheduler.Start()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
