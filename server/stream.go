package server

import (
	"errors"
	"net/http"
	"time"

	"BDDLabelServer/dataset"
	"BDDLabelServer/logger"
	"BDDLabelServer/monitor"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	msgSample = "sample"
	msgError  = "error"
	msgDone   = "done"

	closeWait = 2 * time.Second
)

// streamMessage WebSocket 上逐条推送的消息；单个样本失败只发送 error 消息，不中断流
type streamMessage struct {
	Type     string          `json:"type"`
	Filename string          `json:"filename,omitempty"`
	Sample   *dataset.Sample `json:"sample,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (s *Server) handleStream(c *gin.Context) {
	sessionID := c.Param("id")
	// 在升级前检查会话是否存在
	sess, exists := s.lookupSession(sessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 升级失败，不要再写 JSON
		return
	}
	monitor.RequestsTotal.WithLabelValues("stream").Inc()
	conn.SetReadLimit(1 << 10)
	sess.addConn(conn)
	defer func() {
		sess.removeConn(conn)
		_ = conn.Close()
	}()

	// 客户端不发送业务消息；读循环负责处理 ping 和 close 帧，连接断开时关闭 done
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sent := 0
	for _, name := range sess.importer.Filenames() {
		select {
		case <-done:
			logger.Log().Info("Stream closed by client", zap.String("sessionID", sessionID), zap.Int("messages", sent))
			return
		default:
		}
		msg := streamMessage{Type: msgSample, Filename: name}
		sample, err := sess.importer.Load(name)
		switch {
		case errors.Is(err, dataset.ErrUnlabeledImage) && sess.importer.SkipUnlabeled:
			continue
		case err != nil:
			msg.Type = msgError
			msg.Error = err.Error()
		default:
			msg.Sample = sample
		}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Log().Warn("Stream closed early", zap.String("sessionID", sessionID), zap.Error(err))
			return
		}
		sent++
	}
	_ = conn.WriteJSON(streamMessage{Type: msgDone})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	// 等待对端回应 close 帧
	select {
	case <-done:
	case <-time.After(closeWait):
	}
	logger.Log().Info("Stream finished", zap.String("sessionID", sessionID), zap.Int("messages", sent))
}
