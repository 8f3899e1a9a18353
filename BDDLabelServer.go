package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"BDDLabelServer/config"
	"BDDLabelServer/engine"
	backend "BDDLabelServer/gRPC"
	"BDDLabelServer/logger"
	"BDDLabelServer/monitor"
	"BDDLabelServer/notify"
	"BDDLabelServer/server"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := logger.InitProduction(); err != nil {
		fmt.Println("Failed to init logger:", err)
		return
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Failed to read config file:", err)
		return
	}
	if err := logger.Init(cfg.LogLevel, cfg.Development); err != nil {
		fmt.Println("Invalid log level in config:", err)
		return
	}
	defer logger.Sync()

	fmt.Println(strings.Repeat("#", 64))
	fmt.Println(" HTTP    Port:", cfg.HTTPPort)
	fmt.Println(" gRPC    Port:", cfg.RPCPort)
	fmt.Println(" Metrics Port:", cfg.MetricsPort)
	fmt.Println(" Image Backend:", cfg.ImageBackend)
	fmt.Println(strings.Repeat("#", 64))
	fmt.Println("")

	images, err := engine.LoadImages(cfg.ImageBackend)
	if err != nil {
		logger.Log().Error("Failed to load image backend", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.StartMon(ctx, cfg.MetricsPort)
	}()

	rpcServer, err := backend.StartGRPCServer(cfg.RPCPort)
	if err != nil {
		logger.Log().Error("Failed to start gRPC server", zap.Error(err))
		cancel()
		wg.Wait()
		return
	}

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	api := server.New(server.Options{
		Images:        images,
		DatasetRoot:   cfg.DatasetRoot,
		SkipUnlabeled: cfg.Import.SkipUnlabeled,
		ResizeLonger:  cfg.Export.ResizeLonger,
		StrokeWidth:   cfg.Preview.StrokeWidth,
		Notifier: notify.New(notify.Config{
			URL:     cfg.Webhook.URL,
			Retries: cfg.Webhook.Retries,
			Timeout: cfg.Webhook.Timeout,
		}),
	})
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: api.Router(),
	}
	go func() {
		logger.Log().Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("HTTP server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Log().Warn("Shutting down...")

	api.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("HTTP server shutdown error", zap.Error(err))
	}
	rpcServer.GracefulStop()
	cancel()
	wg.Wait()
	fmt.Println("Safely exited")
}
