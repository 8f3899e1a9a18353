// Package render 在图像上绘制内部标注的包围框，用于预览导入结果。
package render

import (
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"

	iface "BDDLabelServer/interface"

	"github.com/llgcode/draw2d/draw2dimg"
)

var palette = []color.RGBA{
	{R: 255, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 200, B: 0, A: 255},
	{R: 0, G: 128, B: 255, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 255, G: 128, B: 0, A: 255},
}

// ColorFor 同一类别总是同一种颜色
func ColorFor(label string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Preview 复制 img 并按其自身尺寸把相对框换算回像素后描边
func Preview(img image.Image, labels *iface.ImageLabels, strokeWidth float64) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	if labels == nil || len(labels.Objects) == 0 {
		return out
	}
	if strokeWidth <= 0 {
		strokeWidth = 2
	}
	w := float64(b.Dx())
	h := float64(b.Dy())

	gc := draw2dimg.NewGraphicContext(out)
	gc.SetLineWidth(strokeWidth)
	for _, obj := range labels.Objects {
		c := obj.BoundingBox.Corners()
		gc.SetStrokeColor(ColorFor(obj.Label))
		gc.BeginPath()
		gc.MoveTo(c.LT.X*w, c.LT.Y*h)
		gc.LineTo(c.RT.X*w, c.RT.Y*h)
		gc.LineTo(c.RB.X*w, c.RB.Y*h)
		gc.LineTo(c.LB.X*w, c.LB.Y*h)
		gc.Close()
		gc.Stroke()
	}
	return out
}
