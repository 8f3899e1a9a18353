package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	iface "BDDLabelServer/interface"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// StdImages 基于 image 注册表的默认图像实现（jpeg/png/gif + x/image 的 bmp/tiff/webp）
type StdImages struct{}

var _ iface.ImageDecoder = StdImages{}
var _ iface.MetadataBuilder = StdImages{}
var _ iface.FileCopier = StdImages{}

func (StdImages) DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// BuildFor 只解析图像头
func (StdImages) BuildFor(path string) (iface.ImageMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return iface.ImageMetadata{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return iface.ImageMetadata{}, err
	}
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return iface.ImageMetadata{}, fmt.Errorf("read image header %s: %w", path, err)
	}
	return iface.ImageMetadata{
		SizeBytes:   info.Size(),
		MimeType:    "image/" + format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		NumChannels: channelsOf(cfg.ColorModel),
	}, nil
}

func (StdImages) Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func channelsOf(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model, color.CMYKModel:
		return 4
	}
	return 3
}

// FrameSizeOf 已解码图像的帧尺寸
func FrameSizeOf(img image.Image) iface.FrameSize {
	b := img.Bounds()
	return iface.FrameSize{Width: b.Dx(), Height: b.Dy()}
}

// canEncode 导出缩放时能按原扩展名重新编码的格式
func canEncode(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

func encodeFile(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 95})
	case ".png":
		err = png.Encode(out, img)
	case ".gif":
		err = gif.Encode(out, img, nil)
	case ".bmp":
		err = bmp.Encode(out, img)
	case ".tif", ".tiff":
		err = tiff.Encode(out, img, nil)
	default:
		err = fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
	if err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
