package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatehouse.org/internal/audit"
	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/cache"
	"gatehouse.org/internal/config"
	"gatehouse.org/internal/httpapi"
	"gatehouse.org/internal/obs"
	"gatehouse.org/internal/rbac"
	"gatehouse.org/internal/store/pg"
)

var version = "0.3.0"

func main() {
	obs.Init()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.PGDSN == "" {
		log.Fatal("missing DSN: set GATEHOUSE_PG_DSN")
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := rbac.EnsureBuiltins(bootCtx, store); err != nil {
		cancel()
		log.Fatalf("ensure builtin permissions: %v", err)
	}
	cancel()

	var permCache rbac.Cache
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cache.RedisConfig{
			Addr:    cfg.Redis.Addr,
			DB:      cfg.Redis.DB,
			Timeout: cfg.Redis.Timeout,
		})
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer client.Close()
		permCache = cache.NewRedis(client)
	} else {
		permCache = cache.NewLocal(cfg.Cache.LocalSize, cfg.Cache.TTL)
	}

	recorder := audit.NewRecorder(store.Audit())
	recorder.Start()
	defer recorder.Close()

	resolver, err := rbac.NewResolver(store, rbac.WithCache(permCache, cfg.Cache.TTL))
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	authz, err := rbac.NewAuthorizer(store, resolver, rbac.WithRecorder(recorder))
	if err != nil {
		log.Fatalf("authorizer: %v", err)
	}
	svc, err := rbac.NewService(store,
		rbac.WithAuditRecorder(recorder),
		rbac.WithInvalidation(resolver),
	)
	if err != nil {
		log.Fatalf("service: %v", err)
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret, auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	probe := httpapi.ReadyProbe{DB: store.DB()}
	api := httpapi.New(probe, version, tokens, store, svc, resolver, authz,
		httpapi.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting gatehouse-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	var grpcHealth *httpapi.GRPCHealth
	if cfg.GRPCAddr != "" {
		grpcHealth = httpapi.NewGRPCHealth(probe)
		go func() {
			log.Printf("Starting gRPC health on %s", cfg.GRPCAddr)
			if err := grpcHealth.Serve(cfg.GRPCAddr); err != nil {
				log.Fatalf("grpc listen: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if grpcHealth != nil {
		grpcHealth.Shutdown()
	}
	log.Println("Stopped")
}
