package domain

import (
	"fmt"
	"image"
	"image/draw"
)

// RasterImage is a decoded radar frame: non-premultiplied RGBA, row-major,
// four bytes per pixel. Alpha 0 marks a cell without rain.
type RasterImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRasterFromImage materializes any decoded image into straight RGBA.
func NewRasterFromImage(img image.Image) RasterImage {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	return RasterImage{Width: b.Dx(), Height: b.Dy(), Pix: nrgba.Pix}
}

// Validate checks the buffer matches the declared dimensions.
func (r RasterImage) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: empty raster %dx%d", ErrVectorize, r.Width, r.Height)
	}
	if len(r.Pix) != r.Width*r.Height*4 {
		return fmt.Errorf("%w: buffer has %d bytes, want %d", ErrVectorize, len(r.Pix), r.Width*r.Height*4)
	}
	return nil
}

// At returns the color and alpha of pixel (x, y).
func (r RasterImage) At(x, y int) (RGB, uint8) {
	i := (y*r.Width + x) * 4
	return RGB{R: r.Pix[i], G: r.Pix[i+1], B: r.Pix[i+2]}, r.Pix[i+3]
}
