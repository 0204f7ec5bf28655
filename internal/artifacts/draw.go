package artifacts

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"trailcam/internal/detection"
)

var (
	colorPrimary   = color.NRGBA{0, 255, 0, 255}
	colorSecondary = color.NRGBA{255, 64, 0, 255}
	colorOther     = color.NRGBA{0, 170, 255, 255}
	colorLabelText = color.NRGBA{0, 0, 0, 255}
)

func categoryColor(c detection.Category) color.NRGBA {
	switch c {
	case detection.CategoryPrimary:
		return colorPrimary
	case detection.CategorySecondary:
		return colorSecondary
	default:
		return colorOther
	}
}

// boxRect converts a normalized box to pixels, truncating like the
// small-and-high check, and clips it to bounds.
func boxRect(box detection.Box, bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	r := image.Rect(
		int(box.X*w), int(box.Y*h),
		int((box.X+box.W)*w), int((box.Y+box.H)*h),
	).Add(bounds.Min)
	return r.Intersect(bounds)
}

func strokeWidth(bounds image.Rectangle) int {
	return max(2, min(bounds.Dx(), bounds.Dy())/270)
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	if r.Empty() {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	x0, x1 = max(min(x0, x1), b.Min.X), min(max(x0, x1), b.Max.X)
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	y0, y1 = max(min(y0, y1), b.Min.Y), min(max(y0, y1), b.Max.Y)
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// drawLabel writes text on a filled tab above the box's top-left corner, or
// inside the box when there is no room above it.
func drawLabel(img *image.NRGBA, box image.Rectangle, text string, bg color.NRGBA) {
	face := basicfont.Face7x13
	const pad = 2
	width := font.MeasureString(face, text).Ceil() + 2*pad
	height := face.Height + pad

	top := box.Min.Y - height
	if top < img.Bounds().Min.Y {
		top = box.Min.Y
	}
	tab := image.Rect(box.Min.X, top, box.Min.X+width, top+height)
	fillRect(img, tab, bg)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colorLabelText),
		Face: face,
		Dot:  fixed.P(tab.Min.X+pad, tab.Min.Y+face.Ascent+pad/2),
	}
	d.DrawString(text)
}
