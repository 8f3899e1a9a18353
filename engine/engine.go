// Package engine 选择图像解码后端：std（Go image 注册表）或 opencv（gocv，需 -tags opencv 构建）。
package engine

import (
	"fmt"
	"strings"

	"BDDLabelServer/dataset"
	iface "BDDLabelServer/interface"
	"BDDLabelServer/logger"

	"go.uber.org/zap"
)

const (
	BackendStd    = "std"
	BackendOpenCV = "opencv"
)

// Images 导入/导出所需的图像协作者
type Images interface {
	iface.ImageDecoder
	iface.MetadataBuilder
}

// LoadImages 根据配置名返回图像后端，空字符串视为 std
func LoadImages(backend string) (Images, error) {
	switch strings.ToLower(backend) {
	case "", BackendStd:
		logger.Log().Info("Using image backend", zap.String("backend", BackendStd))
		return dataset.StdImages{}, nil
	case BackendOpenCV:
		images, err := newCVImages()
		if err != nil {
			return nil, err
		}
		logger.Log().Info("Using image backend", zap.String("backend", BackendOpenCV))
		return images, nil
	}
	return nil, fmt.Errorf("unsupported image backend: %s", backend)
}
