package bdd

import iface "BDDLabelServer/interface"

// ToRelativeBox 绝对像素坐标 (x1,y1,x2,y2) -> 相对框；不裁剪，越界或零面积框原样保留
func ToRelativeBox(x1, y1, x2, y2 float64, size iface.FrameSize) (iface.RelativeBox, error) {
	if !size.Valid() {
		return iface.RelativeBox{}, &DomainError{Size: size}
	}
	w := float64(size.Width)
	h := float64(size.Height)
	return iface.RelativeBox{
		X:      x1 / w,
		Y:      y1 / h,
		Width:  (x2 - x1) / w,
		Height: (y2 - y1) / h,
	}, nil
}

// ToAbsoluteBox 相对框 -> 绝对像素坐标 (x1,y1,x2,y2)，ToRelativeBox 的逆运算
func ToAbsoluteBox(box iface.RelativeBox, size iface.FrameSize) (x1, y1, x2, y2 float64, err error) {
	if !size.Valid() {
		return 0, 0, 0, 0, &DomainError{Size: size}
	}
	w := float64(size.Width)
	h := float64(size.Height)
	x1 = box.X * w
	y1 = box.Y * h
	x2 = x1 + box.Width*w
	y2 = y1 + box.Height*h
	return x1, y1, x2, y2, nil
}
