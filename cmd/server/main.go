package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"paas-deployer/internal/config"
	"paas-deployer/internal/handler"
	"paas-deployer/internal/pkg/logger"
	"paas-deployer/internal/pkg/metrics"
	"paas-deployer/internal/router"
	"paas-deployer/internal/service"
)

func main() {
	configPath := flag.String("config", "paas-deployer.toml", "config file (TOML)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatal("Failed to create logger: ", err)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	provider := service.NewStaticProvider(cfg.Applications)
	deployService, err := service.NewDeployService(cfg, provider, m, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to create deploy service", "error", err)
	}
	sshService := service.NewSSHService(cfg.SSH, provider, appLogger)

	deployHandler := handler.NewDeployHandler(ctx, deployService, handler.NewTaskStore(appLogger), cfg.AgentWorkspaceRoot(), cfg.Server.AllowedOrigins, appLogger)
	sshHandler := handler.NewSSHHandler(sshService)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	router.RegisterRoutes(r, deployHandler, sshHandler, m, registry)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Infow("Server starting", "address", cfg.Server.Addr, "applications", len(cfg.Applications))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalw("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorw("Graceful shutdown failed", "error", err)
	}
}
