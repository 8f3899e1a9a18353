package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"BDDLabelServer/bdd"
	iface "BDDLabelServer/interface"
	"BDDLabelServer/logger"
	"BDDLabelServer/monitor"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

// Exporter 将样本写成 BDD 数据集：图像拷贝到 data/，标注累积在内存中，Close 时一次写出 labels.json。
// ResizeLonger > 0 时把长边大于该值的图像缩小后再写出；包围框是相对坐标，编码时使用输出图像的尺寸。
// 单次导出会话使用，非并发安全。
type Exporter struct {
	ExportDir    string
	ResizeLonger int
	Decoder      iface.ImageDecoder
	Metadata     iface.MetadataBuilder
	Copier       iface.FileCopier

	dataDir     string
	labelsPath  string
	annotations []*bdd.RawAnnotation
	names       *nameAllocator
}

func NewExporter(exportDir string) *Exporter {
	return &Exporter{ExportDir: exportDir, Decoder: StdImages{}, Metadata: StdImages{}, Copier: StdImages{}}
}

func (ex *Exporter) RequiresImageMetadata() bool {
	return true
}

func (ex *Exporter) Setup() error {
	ex.dataDir = filepath.Join(ex.ExportDir, DataDir)
	ex.labelsPath = filepath.Join(ex.ExportDir, LabelsFile)
	ex.annotations = []*bdd.RawAnnotation{}
	ex.names = newNameAllocator()
	return os.MkdirAll(ex.dataDir, 0o755)
}

// ExportSample 写出一张图像并追加其标注，返回 data/ 下的输出文件名。
// metadata 为 nil 时从源图像读取。
func (ex *Exporter) ExportSample(imagePath string, labels *iface.ImageLabels, metadata *iface.ImageMetadata) (string, error) {
	if ex.names == nil {
		return "", ErrNotSetup
	}
	base := filepath.Base(imagePath)
	filename, count := ex.names.next(base)
	outPath := filepath.Join(ex.dataDir, filename)
	record, err := ex.writeSample(imagePath, outPath, filename, labels, metadata)
	if err != nil {
		// 失败的样本不占用文件名
		_ = os.Remove(outPath)
		return "", err
	}
	ex.names.commit(base, filename, count)
	ex.annotations = append(ex.annotations, record)
	monitor.SamplesExported.Inc()
	return filename, nil
}

func (ex *Exporter) writeSample(imagePath, outPath, filename string, labels *iface.ImageLabels, metadata *iface.ImageMetadata) (*bdd.RawAnnotation, error) {
	var size iface.FrameSize
	resized, err := ex.writeResized(imagePath, outPath, metadata)
	if err != nil {
		return nil, err
	}
	if resized != nil {
		size = *resized
	} else {
		if err := ex.Copier.Copy(imagePath, outPath); err != nil {
			return nil, err
		}
		if metadata == nil {
			m, err := ex.Metadata.BuildFor(imagePath)
			if err != nil {
				return nil, err
			}
			metadata = &m
		}
		size = metadata.FrameSize()
	}

	record, err := bdd.Encode(labels, size, filename)
	if err != nil {
		monitor.RecordError(err)
		return nil, fmt.Errorf("%s: %w", imagePath, err)
	}
	return record, nil
}

// writeResized 需要缩放时解码、缩放并写出图像，返回输出尺寸；不需要缩放时返回 nil
func (ex *Exporter) writeResized(imagePath, outPath string, metadata *iface.ImageMetadata) (*iface.FrameSize, error) {
	if ex.ResizeLonger <= 0 {
		return nil, nil
	}
	if !canEncode(filepath.Ext(outPath)) {
		logger.Log().Warn("cannot re-encode image, copying without resize", zap.String("path", imagePath))
		return nil, nil
	}
	if metadata != nil && max(metadata.Width, metadata.Height) <= ex.ResizeLonger {
		return nil, nil
	}
	img, err := ex.Decoder.DecodeFile(imagePath)
	if err != nil {
		return nil, err
	}
	size := FrameSizeOf(img)
	if max(size.Width, size.Height) <= ex.ResizeLonger {
		return nil, nil
	}
	var w, h uint
	if size.Width >= size.Height {
		w = uint(ex.ResizeLonger)
	} else {
		h = uint(ex.ResizeLonger)
	}
	out := resize.Resize(w, h, img, resize.Lanczos3)
	if err := encodeFile(outPath, out); err != nil {
		return nil, err
	}
	outSize := FrameSizeOf(out)
	logger.Log().Debug("resized exported image",
		zap.String("path", outPath),
		zap.Int("width", outSize.Width),
		zap.Int("height", outSize.Height))
	return &outSize, nil
}

func (ex *Exporter) Records() []*bdd.RawAnnotation {
	return append([]*bdd.RawAnnotation(nil), ex.annotations...)
}

// Close 一次性写出 labels.json，顺序与导出顺序一致
func (ex *Exporter) Close() error {
	if ex.names == nil {
		return ErrNotSetup
	}
	logger.Log().Info("Writing labels", zap.String("path", ex.labelsPath), zap.Int("records", len(ex.annotations)))
	return bdd.WriteRecords(ex.labelsPath, ex.annotations)
}

// nameAllocator 输出文件名去重：按不含扩展名的基名计数，第 n 次出现（n>1）命名为 <name>-<n><ext>；
// 若该名字已被占用则继续递增
type nameAllocator struct {
	counts map[string]int
	used   map[string]bool
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{counts: map[string]int{}, used: map[string]bool{}}
}

// next 返回 base 的下一个可用文件名及其计数，不占用该名字
func (a *nameAllocator) next(base string) (string, int) {
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	count := a.counts[name] + 1
	if count == 1 && !a.used[base] {
		return base, count
	}
	count = max(count, 2)
	for a.used[fmt.Sprintf("%s-%d%s", name, count, ext)] {
		count++
	}
	return fmt.Sprintf("%s-%d%s", name, count, ext), count
}

func (a *nameAllocator) commit(base, filename string, count int) {
	a.counts[strings.TrimSuffix(base, filepath.Ext(base))] = count
	a.used[filename] = true
}
