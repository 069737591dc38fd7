package utils

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// 비교 이미지 레이아웃
const (
	ComparisonHeight = 800
	ComparisonGap    = 20
)

// SideBySide - before / after 를 같은 높이로 맞춰 가로로 붙인 비교 이미지.
// 사이 간격은 흰색, 각 이미지 상단 중앙에 라벨을 넣는다.
func SideBySide(before, after image.Image, height int) *image.RGBA {
	if height <= 0 {
		height = ComparisonHeight
	}
	left := scaleToHeight(before, height)
	right := scaleToHeight(after, height)

	lw, rw := left.Bounds().Dx(), right.Bounds().Dx()
	out := image.NewRGBA(image.Rect(0, 0, lw+ComparisonGap+rw, height))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, 0, lw, height), left, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(lw+ComparisonGap, 0, lw+ComparisonGap+rw, height), right, image.Point{}, draw.Src)

	drawLabel(out, "BEFORE", lw/2, 30)
	drawLabel(out, "AFTER", lw+ComparisonGap+rw/2, 30)
	return out
}

func scaleToHeight(src image.Image, height int) *image.RGBA {
	b := src.Bounds()
	width := max(1, b.Dx()*height/max(1, b.Dy()))
	return ResizeExact(src, width, height)
}

// drawLabel - (cx, cy) 중심에 흰 글씨 + 검은 외곽선
func drawLabel(dst *image.RGBA, text string, cx, cy int) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	x := cx - width/2
	y := cy + face.Ascent/2

	d := &font.Drawer{Dst: dst, Face: face}
	d.Src = image.NewUniform(color.Black)
	for _, off := range []image.Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		d.Dot = fixed.P(x+off.X, y+off.Y)
		d.DrawString(text)
	}
	d.Src = image.NewUniform(color.White)
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}
