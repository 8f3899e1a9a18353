package iface

import "image"

// ImageDecoder 将磁盘上的图像解码为像素
type ImageDecoder interface {
	DecodeFile(path string) (image.Image, error)
}

// MetadataBuilder 只读取图像头，返回尺寸等元数据
type MetadataBuilder interface {
	BuildFor(path string) (ImageMetadata, error)
}

type FileCopier interface {
	Copy(src, dst string) error
}
