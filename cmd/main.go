package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wsbr-console/config"
	"wsbr-console/db"
	"wsbr-console/handlers"
	"wsbr-console/logger"
	"wsbr-console/repository"
	"wsbr-console/routers"
	"wsbr-console/scheduler"
	"wsbr-console/source"
	"wsbr-console/topology"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	// Load config
	path := os.Getenv("WSBR_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	if cfg.Log.AppLogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.AppLogFile), 0755); err != nil {
			fmt.Println("Failed to create log directory:", err)
			os.Exit(1)
		}
	}
	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Logger.Sync()

	logger.Logger.Info("Starting border router console...")

	// Connect to LevelDB
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	// Rendered graph store, fed by the reconciler
	graphRepo := repository.NewGraphRepository(ldb)
	rec := topology.NewReconciler(graphRepo, topology.Format(cfg.Topology.Format))

	files := source.NewFiles(cfg.ServicePaths())
	sched := scheduler.New(files, rec, scheduler.Options{
		Strategy:     scheduler.Strategy(cfg.Topology.Strategy),
		RetryDelay:   cfg.Topology.RetryDelay,
		PollInterval: cfg.Topology.PollInterval,
		Debounce:     cfg.Topology.Debounce,
		FetchTimeout: cfg.Topology.FetchTimeout,
	})

	// Initialize HTTP handlers
	h := handlers.NewHandler(graphRepo, sched, files, files)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		logger.Logger.Info("Server running on port", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Logger.Info("Shutdown signal received, exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		refreshStatus(ctx, files, sched, cfg.Selection, cfg.Status.RefreshInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Logger.Error("Console stopped with error", zap.Error(err))
	}
}

// refreshStatus selects the configured service, then keeps the scheduler's
// view of its active state current.
func refreshStatus(ctx context.Context, services source.StatusSource, sched *scheduler.Scheduler, selection string, every time.Duration) {
	if selection != "" {
		status, err := services.Status(ctx, selection)
		if err != nil {
			logger.Logger.Warn("Failed to get service status", zap.String("service", selection), zap.Error(err))
		}
		sched.Select(selection, status.Active)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service := sched.Status().Service
			if service == "" {
				continue
			}
			status, err := services.Status(ctx, service)
			if err != nil {
				logger.Logger.Warn("Failed to get service status", zap.String("service", service), zap.Error(err))
				continue
			}
			sched.SetActive(status.Active)
		}
	}
}
