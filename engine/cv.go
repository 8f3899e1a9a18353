//go:build opencv

package engine

import (
	"errors"
	"fmt"
	"image"
	"mime"
	"os"
	"path/filepath"

	iface "BDDLabelServer/interface"

	"gocv.io/x/gocv"
)

// CVImages 通过 OpenCV 读取图像
type CVImages struct {
	Flags gocv.IMReadFlag
}

func newCVImages() (Images, error) {
	return &CVImages{Flags: gocv.IMReadColor}, nil
}

func (c *CVImages) read(path string, flags gocv.IMReadFlag) (gocv.Mat, error) {
	mat := gocv.IMRead(path, flags)
	if mat.Empty() {
		// IMRead 返回空 Mat 表示读取或解码失败
		if err := mat.Close(); err != nil {
			return gocv.Mat{}, err
		}
		return gocv.NewMat(), errors.New("decoded image is empty or unsupported format: " + path)
	}
	return mat, nil
}

func (c *CVImages) DecodeFile(path string) (image.Image, error) {
	mat, err := c.read(path, c.Flags)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", path, err)
	}
	return img, nil
}

func (c *CVImages) BuildFor(path string) (iface.ImageMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return iface.ImageMetadata{}, err
	}
	mat, err := c.read(path, gocv.IMReadUnchanged)
	if err != nil {
		return iface.ImageMetadata{}, err
	}
	defer mat.Close()
	return iface.ImageMetadata{
		SizeBytes:   info.Size(),
		MimeType:    mime.TypeByExtension(filepath.Ext(path)),
		Width:       mat.Cols(),
		Height:      mat.Rows(),
		NumChannels: mat.Channels(),
	}, nil
}
