package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/kubeglass/kubeglass-backend/internal/api/rest"
	"github.com/kubeglass/kubeglass-backend/internal/config"
	"github.com/kubeglass/kubeglass-backend/internal/k8s"
	"github.com/kubeglass/kubeglass-backend/internal/loader"
	"github.com/kubeglass/kubeglass-backend/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("kubeglass backend starting", "port", cfg.Port)

	client, err := k8s.NewClient(cfg.KubeconfigPath, cfg.KubeContext)
	if err != nil {
		log.Error("failed to build cluster client", "error", err)
		os.Exit(1)
	}
	if cfg.K8sTimeoutSec > 0 {
		client.SetTimeout(time.Duration(cfg.K8sTimeoutSec) * time.Second)
	}
	if cfg.K8sRateLimitPerSec > 0 && cfg.K8sRateLimitBurst > 0 {
		client.SetLimiter(rate.NewLimiter(rate.Limit(cfg.K8sRateLimitPerSec), cfg.K8sRateLimitBurst))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.TestConnection(ctx); err != nil {
		log.Warn("cluster unreachable at startup, loads will degrade until it recovers", "error", err)
	}
	cancel()

	l := loader.InitLoader(client, cfg, log)
	defer loader.ShutdownLoader()

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	rest.SetupRoutes(api, rest.NewHandler(l))
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		WriteTimeout: 2 * time.Duration(cfg.RequestTimeoutSec) * time.Second,
	}

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
}
