// Package server BDD 标注转换与数据集浏览的 HTTP / WebSocket 接口。
package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"BDDLabelServer/bdd"
	"BDDLabelServer/dataset"
	"BDDLabelServer/engine"
	"BDDLabelServer/logger"
	"BDDLabelServer/notify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	Images        engine.Images
	DatasetRoot   string
	SkipUnlabeled bool
	ResizeLonger  int
	StrokeWidth   float64
	Notifier      *notify.Notifier
}

// session 一个已导入的数据集；importer 建立后只读，Load 可并发调用
type session struct {
	id        string
	dir       string
	importer  *dataset.Importer
	createdAt time.Time

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func (s *session) addConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *session) removeConn(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *session) closeConns(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

type Server struct {
	opts     Options
	upgrader websocket.Upgrader

	sessionMu sync.RWMutex
	sessions  map[string]*session
}

func New(opts Options) *Server {
	if opts.Images == nil {
		opts.Images = dataset.StdImages{}
	}
	if opts.StrokeWidth <= 0 {
		opts.StrokeWidth = 2
	}
	return &Server{
		opts:     opts,
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) openSession(dir string, skipUnlabeled bool) (*session, error) {
	im := dataset.NewImporter(dir, s.opts.Images)
	im.SkipUnlabeled = skipUnlabeled
	if err := im.Setup(); err != nil {
		return nil, err
	}
	sess := &session{
		id:        uuid.New().String(),
		dir:       dir,
		importer:  im,
		createdAt: time.Now(),
		conns:     map[*websocket.Conn]struct{}{},
	}
	s.sessionMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionMu.Unlock()
	return sess, nil
}

func (s *Server) lookupSession(id string) (*session, bool) {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) releaseSession(id string) bool {
	s.sessionMu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.sessionMu.Unlock()
	if !ok {
		return false
	}
	sess.closeConns("session released")
	logger.Log().Info("Session released", zap.String("sessionID", id), zap.String("dataset", sess.dir))
	return true
}

// Close 释放所有会话并断开 WebSocket 连接
func (s *Server) Close() {
	s.sessionMu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessionMu.RUnlock()
	for _, id := range ids {
		s.releaseSession(id)
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/api/convert/decode", s.handleDecode)
	r.POST("/api/convert/encode", s.handleEncode)
	r.POST("/api/datasets/import", s.handleImport)
	r.GET("/api/datasets/:id", s.handleDatasetInfo)
	r.GET("/api/datasets/:id/samples/:name", s.handleSample)
	r.GET("/api/datasets/:id/labels", s.handleLabels)
	r.GET("/api/datasets/:id/preview/:name", s.handlePreview)
	r.POST("/api/datasets/:id/export", s.handleExport)
	r.POST("/api/datasets/:id/release", s.handleRelease)
	r.GET("/ws/:id", s.handleStream)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log().Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// errorStatus 转换错误属于调用方输入问题，返回 400
func errorStatus(err error) int {
	var domainErr *bdd.DomainError
	var missingErr *bdd.MissingFieldError
	var malformedErr *bdd.MalformedInputError
	switch {
	case errors.As(err, &domainErr), errors.As(err, &missingErr), errors.As(err, &malformedErr),
		errors.Is(err, ErrPathOutsideRoot):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrUnlabeledImage), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

// ErrPathOutsideRoot 设置了 DatasetRoot 时，请求路径必须位于其下
var ErrPathOutsideRoot = errors.New("path is outside the dataset root")

// resolvePath 相对路径以 DatasetRoot 为根；未设置 DatasetRoot 时原样返回
func (s *Server) resolvePath(path string) (string, error) {
	if s.opts.DatasetRoot == "" {
		return path, nil
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%s: %w", path, ErrPathOutsideRoot)
	}
	root := filepath.Clean(s.opts.DatasetRoot)
	p := filepath.Join(root, path)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrPathOutsideRoot)
	}
	return p, nil
}

func wsURL(c *gin.Context, sessionID string) string {
	return fmt.Sprintf("ws://%s/ws/%s", c.Request.Host, sessionID)
}
