package config

import (
	"os"
	"time"

	"BDDLabelServer/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort     int     `yaml:"HTTPPort"`
	RPCPort      int     `yaml:"RPCPort"`
	MetricsPort  int     `yaml:"MetricsPort"`
	LogLevel     string  `yaml:"logLevel"`
	Development  bool    `yaml:"development"`
	ImageBackend string  `yaml:"imageBackend"`
	DatasetRoot  string  `yaml:"datasetRoot"`
	Import       Import  `yaml:"import"`
	Export       Export  `yaml:"export"`
	Webhook      Webhook `yaml:"webhook"`
	Preview      Preview `yaml:"preview"`
}

type Import struct {
	SkipUnlabeled bool `yaml:"skipUnlabeled"`
}

type Export struct {
	ResizeLonger int `yaml:"resizeLonger"`
}

type Webhook struct {
	URL     string        `yaml:"url"`
	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
}

type Preview struct {
	StrokeWidth float64 `yaml:"strokeWidth"`
}

func Default() Config {
	return Config{
		HTTPPort:     8080,
		RPCPort:      50051,
		MetricsPort:  9090,
		LogLevel:     "info",
		ImageBackend: "std",
		Webhook:      Webhook{Timeout: 5 * time.Second},
		Preview:      Preview{StrokeWidth: 2},
	}
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse 未填写的字段取默认值，非法值回退到默认值并记录警告
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	def := Default()
	fixPort := func(name string, port *int, fallback int) {
		if *port <= 0 || *port > 65535 {
			logger.Log().Warn("Invalid port in config, using default", zap.String("key", name), zap.Int("value", *port), zap.Int("default", fallback))
			*port = fallback
		}
	}
	fixPort("HTTPPort", &cfg.HTTPPort, def.HTTPPort)
	fixPort("RPCPort", &cfg.RPCPort, def.RPCPort)
	fixPort("MetricsPort", &cfg.MetricsPort, def.MetricsPort)
	if cfg.Export.ResizeLonger < 0 {
		logger.Log().Warn("Invalid export.resizeLonger in config, disabling resize", zap.Int("value", cfg.Export.ResizeLonger))
		cfg.Export.ResizeLonger = 0
	}
	if cfg.Webhook.Retries < 0 {
		cfg.Webhook.Retries = 0
	}
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = def.Webhook.Timeout
	}
	if cfg.Preview.StrokeWidth <= 0 {
		cfg.Preview.StrokeWidth = def.Preview.StrokeWidth
	}
	return cfg, nil
}
