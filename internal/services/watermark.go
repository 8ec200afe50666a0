package services

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// scaleToWidth shrinks img to at most maxWidth, keeping the aspect ratio.
// Images already narrow enough pass through untouched.
func scaleToWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

const (
	stampPadding    = 6
	stampLineHeight = 16
)

// stampImage flattens the overlay lines onto a copy of img: a darkened band
// across the bottom with one text line per entry. The result is the only
// image the backend ever sees.
func stampImage(img image.Image, lines []string) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	bandH := len(lines)*stampLineHeight + 2*stampPadding
	if bandH > b.Dy() {
		bandH = b.Dy()
	}
	band := image.Rect(0, b.Dy()-bandH, b.Dx(), b.Dy())
	draw.Draw(dst, band, image.NewUniform(color.NRGBA{0, 0, 0, 160}), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}
	y := band.Min.Y + stampPadding + stampLineHeight - 4
	for _, line := range lines {
		d.Dot = fixed.P(stampPadding, y)
		d.DrawString(line)
		y += stampLineHeight
	}

	return dst
}
