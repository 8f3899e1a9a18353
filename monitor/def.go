package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"BDDLabelServer/bdd"
	"BDDLabelServer/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

var (
	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
	SamplesImported = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bdd_samples_imported_total",
		Help: "Total number of samples decoded from BDD labels",
	})
	SamplesExported = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bdd_samples_exported_total",
		Help: "Total number of samples encoded to BDD labels",
	})
	ConversionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bdd_conversion_errors_total",
		Help: "Conversion failures by error kind",
	}, []string{"kind"})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bdd_requests_total",
		Help: "Total number of API requests processed",
	}, []string{"api"})
)

// NewRegistry 注册全部指标；每次调用返回独立的 registry，便于测试
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(memUsage, cpuUsage, SamplesImported, SamplesExported, ConversionErrors, RequestsTotal)
	return registry
}

// ErrorKind 将转换错误归类为指标标签
func ErrorKind(err error) string {
	var de *bdd.DomainError
	var mfe *bdd.MissingFieldError
	var mie *bdd.MalformedInputError
	switch {
	case errors.As(err, &de):
		return "domain"
	case errors.As(err, &mfe):
		return "missing_field"
	case errors.As(err, &mie):
		return "malformed_input"
	}
	return "other"
}

func RecordError(err error) {
	if err == nil {
		return
	}
	ConversionErrors.WithLabelValues(ErrorKind(err)).Inc()
}

func checkProcessInfo(p *process.Process) {
	memInfo, err := p.MemoryInfo()
	if err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := p.CPUPercent()
	if err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon 在 port 上提供 /metrics，并每 500ms 采样一次进程内存/CPU，ctx 取消后关闭
func StartMon(ctx context.Context, port int) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Log().Error("failed to open own process for monitoring", zap.Error(err))
		return
	}
	registry := NewRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("Prometheus server ListenAndServe error", zap.Error(err))
		}
	}()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			checkProcessInfo(p)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("Prometheus server Shutdown error", zap.Error(err))
	}
}
