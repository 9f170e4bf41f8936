package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"snipshelf/internal/app"
	"snipshelf/internal/cache"
	"snipshelf/internal/config"
	"snipshelf/internal/email"
	"snipshelf/internal/export"
	"snipshelf/internal/metrics"
	"snipshelf/internal/ordering"
	"snipshelf/internal/search"
	"snipshelf/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	dataStore, err := store.Connect(ctx, cfg.StoreDriver, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer dataStore.Close()

	if err := dataStore.Migrate(ctx, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	registry := metrics.New()

	var scopeCache cache.ScopeCache = cache.Nop{}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := cache.NewRedisScopeCache(cfg.RedisURL, cfg.ScopeCacheTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisCache.Close()
		log.Printf("Using Redis scope cache (ttl %s)", redisCache.TTL())
		scopeCache = redisCache
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewSQLFallback(dataStore), registry.ObserveSearchFallback)
	if meiliClient != nil {
		go searchService.ReindexAll(ctx, dataStore)
	}

	var uploader export.Uploader
	if strings.TrimSpace(cfg.ExportEndpoint) != "" {
		objectStore, err := export.NewObjectStore(ctx, export.ObjectStoreConfig{
			Endpoint:  cfg.ExportEndpoint,
			AccessKey: cfg.ExportAccessKey,
			SecretKey: cfg.ExportSecretKey,
			Bucket:    cfg.ExportBucket,
			UseSSL:    cfg.ExportUseSSL,
			URLExpiry: cfg.ExportURLExpiry,
		})
		if err != nil {
			log.Fatalf("object storage failed: %v", err)
		}
		log.Printf("Uploading exports to bucket %s", cfg.ExportBucket)
		uploader = objectStore
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: "snipshelf",
	})
	if !mailer.IsConfigured() {
		log.Printf("SMTP not configured; share notices are disabled")
	}

	service := app.New(cfg, app.Deps{
		Store:    dataStore,
		Cache:    scopeCache,
		Search:   searchService,
		Export:   export.NewService(dataStore, uploader),
		Migrator: ordering.NewMigrator(ordering.WithObserver(registry)),
		Metrics:  registry,
		Notifier: mailer,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.Handle("/", app.NewHTTPServer(service, cfg.CORSOrigin).Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("snipshelf API listening on %s (%s store)", cfg.Addr, dataStore.Driver())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
