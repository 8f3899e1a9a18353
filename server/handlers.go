package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"BDDLabelServer/bdd"
	"BDDLabelServer/dataset"
	iface "BDDLabelServer/interface"
	"BDDLabelServer/logger"
	"BDDLabelServer/monitor"
	"BDDLabelServer/notify"
	"BDDLabelServer/render"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type decodeRequest struct {
	Record *bdd.RawAnnotation `json:"record"`
	Width  int                `json:"width"`
	Height int                `json:"height"`
}

type encodeRequest struct {
	Labels   *iface.ImageLabels `json:"labels"`
	Width    int                `json:"width"`
	Height   int                `json:"height"`
	Filename string             `json:"filename" binding:"required"`
}

type importRequest struct {
	Path          string `json:"path" binding:"required"`
	SkipUnlabeled *bool  `json:"skipUnlabeled"`
}

type exportRequest struct {
	Path         string `json:"path" binding:"required"`
	ResizeLonger *int   `json:"resizeLonger"`
}

// handleDecode JSON 请求体给出记录和帧尺寸；multipart 请求上传图像（image）和记录（label），帧尺寸取自图像
func (s *Server) handleDecode(c *gin.Context) {
	monitor.RequestsTotal.WithLabelValues("decode").Inc()
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		s.decodeUpload(c)
		return
	}
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Record == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record is required"})
		return
	}
	labels, err := bdd.Decode(req.Record, iface.FrameSize{Width: req.Width, Height: req.Height})
	if err != nil {
		monitor.RecordError(err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": labels})
}

func (s *Server) decodeUpload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File upload failed: " + err.Error()})
		return
	}
	anno := &bdd.RawAnnotation{}
	if err := json.Unmarshal([]byte(c.PostForm("label")), anno); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid label: " + err.Error()})
		return
	}
	tmpDir, err := os.MkdirTemp("", "bdd-upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.RemoveAll(tmpDir)
	imagePath := filepath.Join(tmpDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, imagePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file: " + err.Error()})
		return
	}
	labels, err := dataset.NewSampleParser(s.opts.Images).ParseLabel(imagePath, anno)
	if err != nil {
		monitor.RecordError(err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": labels})
}

func (s *Server) handleEncode(c *gin.Context) {
	monitor.RequestsTotal.WithLabelValues("encode").Inc()
	var req encodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := bdd.Encode(req.Labels, iface.FrameSize{Width: req.Width, Height: req.Height}, req.Filename)
	if err != nil {
		monitor.RecordError(err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) handleImport(c *gin.Context) {
	monitor.RequestsTotal.WithLabelValues("import").Inc()
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	skip := s.opts.SkipUnlabeled
	if req.SkipUnlabeled != nil {
		skip = *req.SkipUnlabeled
	}
	dir, err := s.resolvePath(req.Path)
	if err != nil {
		abortWithError(c, err)
		return
	}
	sess, err := s.openSession(dir, skip)
	if err != nil {
		abortWithError(c, err)
		return
	}
	index := sess.importer.Index()
	s.opts.Notifier.SendAsync(notify.NewEvent(notify.EventImportFinished, sess.dir, sess.importer.Len(), 0))
	c.JSON(http.StatusOK, gin.H{
		"sessionID":  sess.id,
		"images":     sess.importer.Len(),
		"records":    index.Len(),
		"duplicates": index.Duplicates(),
		"wsURL":      wsURL(c, sess.id),
	})
}

// withSession 会话不存在时直接返回 404
func (s *Server) withSession(c *gin.Context) (*session, bool) {
	sess, ok := s.lookupSession(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	}
	return sess, ok
}

func (s *Server) handleDatasetInfo(c *gin.Context) {
	sess, ok := s.withSession(c)
	if !ok {
		return
	}
	index := sess.importer.Index()
	c.JSON(http.StatusOK, gin.H{"data": map[string]any{
		"path":       sess.dir,
		"images":     sess.importer.Len(),
		"records":    index.Len(),
		"duplicates": index.Duplicates(),
		"filenames":  sess.importer.Filenames(),
		"createdAt":  sess.createdAt.Unix(),
	}})
}

func (s *Server) handleSample(c *gin.Context) {
	monitor.RequestsTotal.WithLabelValues("sample").Inc()
	sess, ok := s.withSession(c)
	if !ok {
		return
	}
	sample, err := sess.importer.Load(c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sample})
}

// handleLabels 下载会话的全部标注记录，按文件名排序；format=cbor 时使用 CBOR 编码
func (s *Server) handleLabels(c *gin.Context) {
	monitor.RequestsTotal.WithLabelValues("labels").Inc()
	sess, ok := s.withSession(c)
	if !ok {
		return
	}
	index := sess.importer.Index()
	records := make([]*bdd.RawAnnotation, 0, index.Len())
	for _, name := range index.Names() {
		record, _ := index.Lookup(name)
		records = append(records, record)
	}
	switch c.DefaultQuery("format", "json") {
	case "json":
		c.JSON(http.StatusOK, records)
	case "cbor":
		data, err := bdd.MarshalRecordsCBOR(records)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/cbor", data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format"})
	}
}

func (s *Server) handlePreview(c *gin.Context) {
	monitor.RequestsTotal.WithLabelValues("preview").Inc()
	sess, ok := s.withSession(c)
	if !ok {
		return
	}
	sample, err := sess.importer.Load(c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	img, err := s.opts.Images.DecodeFile(sample.ImagePath)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, render.Preview(img, sample.Labels, s.opts.StrokeWidth)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleExport(c *gin.Context) {
	monitor.RequestsTotal.WithLabelValues("export").Inc()
	sess, ok := s.withSession(c)
	if !ok {
		return
	}
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resizeLonger := s.opts.ResizeLonger
	if req.ResizeLonger != nil {
		resizeLonger = *req.ResizeLonger
	}
	if resizeLonger < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid resizeLonger: %d", resizeLonger)})
		return
	}
	out, err := s.resolvePath(req.Path)
	if err != nil {
		abortWithError(c, err)
		return
	}
	exported, skipped, err := s.exportSession(sess, out, resizeLonger)
	if err != nil {
		logger.Log().Error("Export failed", zap.String("sessionID", sess.id), zap.String("path", out), zap.Error(err))
		abortWithError(c, err)
		return
	}
	s.opts.Notifier.SendAsync(notify.NewEvent(notify.EventExportFinished, out, exported, skipped))
	c.JSON(http.StatusOK, gin.H{"data": map[string]any{
		"path":     out,
		"exported": exported,
		"skipped":  skipped,
	}})
}

// exportSession 按文件名顺序导出会话中的全部样本，遇到第一个错误即停止
func (s *Server) exportSession(sess *session, dir string, resizeLonger int) (exported, skipped int, err error) {
	ex := dataset.NewExporter(dir)
	ex.ResizeLonger = resizeLonger
	ex.Decoder = s.opts.Images
	ex.Metadata = s.opts.Images
	if err := ex.Setup(); err != nil {
		return 0, 0, err
	}
	for _, name := range sess.importer.Filenames() {
		sample, err := sess.importer.Load(name)
		if errors.Is(err, dataset.ErrUnlabeledImage) && sess.importer.SkipUnlabeled {
			skipped++
			continue
		}
		if err != nil {
			return exported, skipped, err
		}
		if _, err := ex.ExportSample(sample.ImagePath, sample.Labels, &sample.Metadata); err != nil {
			return exported, skipped, err
		}
		exported++
	}
	return exported, skipped, ex.Close()
}

func (s *Server) handleRelease(c *gin.Context) {
	if !s.releaseSession(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": "Session released"})
}
