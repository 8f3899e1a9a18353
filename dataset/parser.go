package dataset

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"BDDLabelServer/bdd"
	iface "BDDLabelServer/interface"
)

// SampleParser 解析 (图像, BDD 标注) 对；相对坐标换算所需的帧尺寸总是取自图像本身
type SampleParser struct {
	Decoder iface.ImageDecoder
}

func NewSampleParser(decoder iface.ImageDecoder) *SampleParser {
	if decoder == nil {
		decoder = StdImages{}
	}
	return &SampleParser{Decoder: decoder}
}

func (p *SampleParser) ParseImage(imagePath string) (image.Image, error) {
	return p.Decoder.DecodeFile(imagePath)
}

func (p *SampleParser) ParseLabel(imagePath string, anno *bdd.RawAnnotation) (*iface.ImageLabels, error) {
	_, labels, err := p.Parse(imagePath, anno)
	return labels, err
}

// ParseLabelFile 标注以单条记录的 JSON 文件给出
func (p *SampleParser) ParseLabelFile(imagePath, annoPath string) (*iface.ImageLabels, error) {
	anno, err := ReadAnnotationFile(annoPath)
	if err != nil {
		return nil, err
	}
	return p.ParseLabel(imagePath, anno)
}

func (p *SampleParser) Parse(imagePath string, anno *bdd.RawAnnotation) (image.Image, *iface.ImageLabels, error) {
	img, err := p.ParseImage(imagePath)
	if err != nil {
		return nil, nil, err
	}
	labels, err := bdd.Decode(anno, FrameSizeOf(img))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", imagePath, err)
	}
	return img, labels, nil
}

func ReadAnnotationFile(path string) (*bdd.RawAnnotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	anno := &bdd.RawAnnotation{}
	if err := json.Unmarshal(data, anno); err != nil {
		return nil, &bdd.MalformedInputError{Index: -1, Reason: fmt.Sprintf("%s: %v", path, err), Err: err}
	}
	return anno, nil
}
