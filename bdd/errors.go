package bdd

import (
	"fmt"

	iface "BDDLabelServer/interface"
)

// DomainError 帧尺寸非法（宽或高 <= 0），无法在绝对/相对坐标之间换算
type DomainError struct {
	Size iface.FrameSize
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid frame size %dx%d: width and height must be positive", e.Size.Width, e.Size.Height)
}

// MissingFieldError 目标记录缺少 category 或 box2d
type MissingFieldError struct {
	Field string
	Index int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("label %d: missing required field %q", e.Index, e.Field)
}

// MalformedInputError labels 文件不是对象数组，或某个元素缺少 name
type MalformedInputError struct {
	Index  int
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed labels: %s", e.Reason)
	}
	return fmt.Sprintf("malformed labels: element %d: %s", e.Index, e.Reason)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}
