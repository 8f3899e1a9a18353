package notify

import (
	"context"
	"fmt"
	"time"

	"BDDLabelServer/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventImportFinished = "import.finished"
	EventExportFinished = "export.finished"
	DefaultTimeout      = 5 * time.Second
)

// Event 导入/导出完成后推送给 webhook 的消息体
type Event struct {
	Id        string `json:"id"`
	Type      string `json:"type"`
	Dataset   string `json:"dataset"`
	Samples   int    `json:"samples"`
	Failed    int    `json:"failed"`
	TimeStamp int64  `json:"timestamp"`
}

type Response struct {
	Success bool `json:"success"`
}

type Config struct {
	URL     string
	Retries int
	Timeout time.Duration
}

// Notifier URL 为空时所有调用都是 no-op
type Notifier struct {
	url    string
	client *resty.Client
}

func New(cfg Config) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &Notifier{url: cfg.URL, client: client}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// NewEvent 每个事件都有唯一 id，接收方可据此去重
func NewEvent(eventType, dataset string, samples, failed int) Event {
	return Event{
		Id:        uuid.NewString(),
		Type:      eventType,
		Dataset:   dataset,
		Samples:   samples,
		Failed:    failed,
		TimeStamp: time.Now().Unix(),
	}
}

func (n *Notifier) Send(ctx context.Context, ev Event) error {
	if !n.Enabled() {
		return nil
	}
	var respBody Response
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(ev).
		SetResult(&respBody).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook request error: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned error: %s, body: %s", resp.Status(), resp.String())
	}
	logger.Log().Info("Webhook delivered", zap.String("id", ev.Id), zap.String("type", ev.Type), zap.Bool("ack", respBody.Success))
	return nil
}

// SendAsync 后台发送，失败只记录日志
func (n *Notifier) SendAsync(ev Event) {
	if !n.Enabled() {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log().Error(fmt.Sprintf("webhook panic recovered: %v", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 4*DefaultTimeout)
		defer cancel()
		if err := n.Send(ctx, ev); err != nil {
			logger.Log().Error("webhook failed", zap.String("id", ev.Id), zap.Error(err))
		}
	}()
}
