package raster

import (
	"image"
	"image/color"

	"github.com/0xV8/orderbuddy-main/internal/receipt"
)

// DefaultWidth is the printable width of 80 mm paper at 203 dpi.
const DefaultWidth = 576

// maxBandRows bounds one GS v 0 block; some printers drop taller images.
const maxBandRows = 1024

// EncodeImage scales img to width dots and returns a complete print job:
// init, the image as GS v 0 bands, feed and cut.
func EncodeImage(img image.Image, width int) []byte {
	if width <= 0 {
		width = DefaultWidth
	}
	// ESC/POS width must be divisible by 8
	width -= width % 8

	img = resizeToWidth(img, width)
	height := img.Bounds().Dy()
	rowBytes := width / 8

	job := receipt.InitCommand()
	for top := 0; top < height; top += maxBandRows {
		rows := min(maxBandRows, height-top)
		job = append(job,
			0x1D, 0x76, 0x30, 0x00, // GS v 0, normal density
			byte(rowBytes), byte(rowBytes>>8),
			byte(rows), byte(rows>>8),
		)
		job = append(job, threshold(img, top, rows, rowBytes)...)
	}
	return append(job, receipt.FeedAndCut()...)
}

// threshold converts rows [top, top+rows) to 1 bit per dot, MSB first,
// 1 meaning black.
func threshold(img image.Image, top, rows, rowBytes int) []byte {
	b := img.Bounds()
	out := make([]byte, rowBytes*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < rowBytes*8 && x < b.Dx(); x++ {
			gray := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+top+y)).(color.Gray)
			if gray.Y < 0x80 {
				out[y*rowBytes+x/8] |= 1 << (7 - x%8)
			}
		}
	}
	return out
}

// resizeToWidth scales with nearest-neighbour sampling, keeping the aspect
// ratio.
func resizeToWidth(src image.Image, targetWidth int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == targetWidth || w == 0 {
		return src
	}
	scale := float64(targetWidth) / float64(w)
	newHeight := max(1, int(float64(h)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, newHeight))
	for y := 0; y < newHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sx := b.Min.X + int(float64(x)/scale)
			sy := b.Min.Y + int(float64(y)/scale)
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
