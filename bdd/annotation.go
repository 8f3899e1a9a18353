// Package bdd 在 Berkeley DeepDrive (BDD) 标注 JSON 与内部归一化标注之间转换。
//
// BDD 记录使用绝对像素坐标 box2d{x1,y1,x2,y2}；内部表示使用相对帧尺寸的包围框。
// 两个方向都必须使用同一个帧尺寸，否则几何信息会被破坏。
package bdd

import (
	"fmt"

	iface "BDDLabelServer/interface"
)

// Box2D 绝对像素坐标，字段顺序与 BDD 导出一致
type Box2D struct {
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
	Y1 float64 `json:"y1"`
	Y2 float64 `json:"y2"`
}

// RawObject labels 数组中的一个目标；id 只是位置索引，导出时重新生成
type RawObject struct {
	Attributes       RawAttributes `json:"attributes"`
	Box2D            *Box2D        `json:"box2d"`
	Category         *string       `json:"category"`
	ID               int           `json:"id"`
	ManualAttributes bool          `json:"manualAttributes"`
	ManualShape      bool          `json:"manualShape"`
}

// RawAnnotation 一张图像的 BDD 标注记录，name 是 labels 文件内的唯一键
type RawAnnotation struct {
	Attributes RawAttributes `json:"attributes"`
	Labels     []RawObject   `json:"labels"`
	Name       *string       `json:"name"`
}

func (r *RawAnnotation) FileName() string {
	if r == nil || r.Name == nil {
		return ""
	}
	return *r.Name
}

// Decode 结合图像帧尺寸把 BDD 记录转换为内部标注。
// 缺少 attributes / labels 视为空；目标缺少 category 或 box2d 返回 *MissingFieldError。
func Decode(record *RawAnnotation, size iface.FrameSize) (*iface.ImageLabels, error) {
	if !size.Valid() {
		return nil, &DomainError{Size: size}
	}
	if record == nil {
		return nil, &MalformedInputError{Index: -1, Reason: "record is nil"}
	}
	labels := &iface.ImageLabels{
		Attrs:   ClassifyAll(record.Attributes),
		Objects: make([]iface.DetectedObject, 0, len(record.Labels)),
	}
	for i, obj := range record.Labels {
		if obj.Category == nil {
			return nil, &MissingFieldError{Field: "category", Index: i}
		}
		if obj.Box2D == nil {
			return nil, &MissingFieldError{Field: "box2d", Index: i}
		}
		b := obj.Box2D
		box, err := ToRelativeBox(b.X1, b.Y1, b.X2, b.Y2, size)
		if err != nil {
			return nil, err
		}
		labels.Objects = append(labels.Objects, iface.DetectedObject{
			Label:       *obj.Category,
			BoundingBox: box,
			Attrs:       ClassifyAll(obj.Attributes),
		})
	}
	return labels, nil
}

// Encode Decode 的逆过程。id 按输入顺序从 0 重新编号，
// manualAttributes / manualShape 内部不建模，导出时固定为 true。
func Encode(labels *iface.ImageLabels, size iface.FrameSize, filename string) (*RawAnnotation, error) {
	if !size.Valid() {
		return nil, &DomainError{Size: size}
	}
	name := filename
	record := &RawAnnotation{Name: &name, Attributes: RawAttributes{}, Labels: []RawObject{}}
	if labels == nil {
		return record, nil
	}
	record.Attributes = flatten(labels.Attrs)
	record.Labels = make([]RawObject, 0, len(labels.Objects))
	for idx, obj := range labels.Objects {
		x1, y1, x2, y2, err := ToAbsoluteBox(obj.BoundingBox, size)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", idx, err)
		}
		category := obj.Label
		record.Labels = append(record.Labels, RawObject{
			Attributes:       flatten(obj.Attrs),
			Box2D:            &Box2D{X1: x1, X2: x2, Y1: y1, Y2: y2},
			Category:         &category,
			ID:               idx,
			ManualAttributes: true,
			ManualShape:      true,
		})
	}
	return record, nil
}
