// Package dataset 读写磁盘上的 BDD 数据集：
//
//	<dataset_dir>/
//	    data/
//	        <filename0>.<ext>
//	        ...
//	    labels.json
package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"BDDLabelServer/bdd"
	iface "BDDLabelServer/interface"
	"BDDLabelServer/logger"
	"BDDLabelServer/monitor"

	"go.uber.org/zap"
)

const (
	DataDir    = "data"
	LabelsFile = "labels.json"
)

var (
	ErrUnlabeledImage = errors.New("image has no record in labels")
	ErrNotSetup       = errors.New("setup has not been called")
)

type Sample struct {
	ImagePath string              `json:"image_path"`
	Filename  string              `json:"filename"`
	Metadata  iface.ImageMetadata `json:"metadata"`
	Labels    *iface.ImageLabels  `json:"labels"`
}

// Importer 按文件名顺序遍历 data/ 中的图像，并与 labels.json 中同名记录配对。
// 单次导入会话使用，非并发安全。
type Importer struct {
	DatasetDir    string
	SkipUnlabeled bool
	Metadata      iface.MetadataBuilder

	dataDir    string
	labelsPath string
	index      *bdd.Index
	filenames  []string
	pos        int
}

func NewImporter(datasetDir string, meta iface.MetadataBuilder) *Importer {
	if meta == nil {
		meta = StdImages{}
	}
	return &Importer{DatasetDir: datasetDir, Metadata: meta}
}

// Setup 加载 labels 索引并列出图像；labels 格式错误时在产出任何样本前失败
func (im *Importer) Setup() error {
	im.dataDir = filepath.Join(im.DatasetDir, DataDir)
	im.labelsPath = filepath.Join(im.DatasetDir, LabelsFile)
	index, err := bdd.LoadIndex(im.labelsPath)
	if err != nil {
		monitor.RecordError(err)
		return err
	}
	filenames, err := listFiles(im.dataDir)
	if err != nil {
		return err
	}
	im.index = index
	im.filenames = filenames
	im.pos = 0
	logger.Log().Info("BDD importer ready",
		zap.String("dataset", im.DatasetDir),
		zap.Int("images", len(filenames)),
		zap.Int("records", index.Len()))
	return nil
}

func (im *Importer) HasImageMetadata() bool {
	return true
}

func (im *Importer) Len() int {
	return len(im.filenames)
}

func (im *Importer) Index() *bdd.Index {
	return im.index
}

func (im *Importer) Filenames() []string {
	return append([]string(nil), im.filenames...)
}

// Reset 重新从第一张图像开始遍历
func (im *Importer) Reset() {
	im.pos = 0
}

// Next 返回下一个样本，遍历结束时返回 io.EOF
func (im *Importer) Next() (*Sample, error) {
	if im.index == nil {
		return nil, ErrNotSetup
	}
	for im.pos < len(im.filenames) {
		filename := im.filenames[im.pos]
		im.pos++
		sample, err := im.Load(filename)
		if errors.Is(err, ErrUnlabeledImage) && im.SkipUnlabeled {
			logger.Log().Warn("skipping unlabeled image", zap.String("filename", filename))
			continue
		}
		return sample, err
	}
	return nil, io.EOF
}

// Load 按文件名读取单个样本，不影响遍历位置
func (im *Importer) Load(filename string) (*Sample, error) {
	if im.index == nil {
		return nil, ErrNotSetup
	}
	imagePath := filepath.Join(im.dataDir, filename)
	record, ok := im.index.Lookup(filename)
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnlabeledImage)
	}
	metadata, err := im.Metadata.BuildFor(imagePath)
	if err != nil {
		return nil, err
	}
	labels, err := bdd.Decode(record, metadata.FrameSize())
	if err != nil {
		monitor.RecordError(err)
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	monitor.SamplesImported.Inc()
	return &Sample{
		ImagePath: imagePath,
		Filename:  filename,
		Metadata:  metadata,
		Labels:    labels,
	}, nil
}

// listFiles data/ 下的普通文件（不递归，跳过隐藏文件），按名称排序
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
