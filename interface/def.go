package iface

import (
	"encoding/json"
	"fmt"
)

// AttrKind 属性类型标签
type AttrKind int

const (
	Boolean AttrKind = iota + 1
	Numeric
	Categorical
)

func (k AttrKind) String() string {
	switch k {
	case Boolean:
		return "boolean"
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	}
	return fmt.Sprintf("AttrKind(%d)", int(k))
}

func kindFrom(s string) (AttrKind, error) {
	switch s {
	case "boolean":
		return Boolean, nil
	case "numeric":
		return Numeric, nil
	case "categorical":
		return Categorical, nil
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}

// Attribute 帧级或目标级的带类型属性，只有与 Kind 对应的字段有效
type Attribute struct {
	Kind     AttrKind
	Name     string
	Bool     bool
	Number   float64
	Category string
}

func BoolAttr(name string, v bool) Attribute {
	return Attribute{Kind: Boolean, Name: name, Bool: v}
}

func NumericAttr(name string, v float64) Attribute {
	return Attribute{Kind: Numeric, Name: name, Number: v}
}

func CategoricalAttr(name string, v string) Attribute {
	return Attribute{Kind: Categorical, Name: name, Category: v}
}

// Value 返回属性的原始值 (bool / float64 / string)
func (a Attribute) Value() any {
	switch a.Kind {
	case Boolean:
		return a.Bool
	case Numeric:
		return a.Number
	default:
		return a.Category
	}
}

type attrJSON struct {
	Type  string          `json:"type"`
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

func (a Attribute) MarshalJSON() ([]byte, error) {
	v, err := json.Marshal(a.Value())
	if err != nil {
		return nil, err
	}
	return json.Marshal(attrJSON{Type: a.Kind.String(), Name: a.Name, Value: v})
}

func (a *Attribute) UnmarshalJSON(b []byte) error {
	var raw attrJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	kind, err := kindFrom(raw.Type)
	if err != nil {
		return err
	}
	out := Attribute{Kind: kind, Name: raw.Name}
	switch kind {
	case Boolean:
		err = json.Unmarshal(raw.Value, &out.Bool)
	case Numeric:
		err = json.Unmarshal(raw.Value, &out.Number)
	case Categorical:
		err = json.Unmarshal(raw.Value, &out.Category)
	}
	if err != nil {
		return fmt.Errorf("attribute %q: %w", raw.Name, err)
	}
	*a = out
	return nil
}

// FrameSize 图像尺寸（像素）
type FrameSize struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (f FrameSize) Valid() bool {
	return f.Width > 0 && f.Height > 0
}

type Position struct {
	X, Y float64
}

// Box 四个角点，与 RelativeBox 处于同一坐标空间
type Box struct {
	LT Position
	RT Position
	RB Position
	LB Position
}

// RelativeBox 相对帧尺寸的包围框：左上角 (X, Y) 与宽高，均为帧宽/高的比例，不做裁剪
type RelativeBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r RelativeBox) Corners() Box {
	x2 := r.X + r.Width
	y2 := r.Y + r.Height
	return Box{
		LT: Position{X: r.X, Y: r.Y},
		RT: Position{X: x2, Y: r.Y},
		RB: Position{X: x2, Y: y2},
		LB: Position{X: r.X, Y: y2},
	}
}

func (r RelativeBox) Center() Position {
	return Position{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

type DetectedObject struct {
	Label       string      `json:"label"`
	BoundingBox RelativeBox `json:"bounding_box"`
	Attrs       []Attribute `json:"attrs"`
}

// ImageLabels 单张图像的内部标注：帧属性 + 目标列表
type ImageLabels struct {
	Attrs   []Attribute      `json:"attrs"`
	Objects []DetectedObject `json:"objects"`
}

type ImageMetadata struct {
	SizeBytes   int64  `json:"size_bytes"`
	MimeType    string `json:"mime_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	NumChannels int    `json:"num_channels"`
}

func (m ImageMetadata) FrameSize() FrameSize {
	return FrameSize{Width: m.Width, Height: m.Height}
}
