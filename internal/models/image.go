package models

import "fmt"

// Image is a 2D grid of real-valued intensities stored in row-major order.
// Pixel (x, y) lives at Pix[y*Width+x]; x is the column, y is the row.
type Image struct {
	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int

	// Pix holds Width*Height intensities
	Pix []float64
}

// NewImage allocates a zero-valued image of the given size
func NewImage(width, height int) *Image {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("models: negative image size %dx%d", width, height))
	}
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// NewImageFrom wraps pix as a width x height image. pix is not copied.
func NewImageFrom(width, height int, pix []float64) *Image {
	if len(pix) != width*height {
		panic(fmt.Sprintf("models: %d pixels do not fill a %dx%d image", len(pix), width, height))
	}
	return &Image{Width: width, Height: height, Pix: pix}
}

// At returns the intensity at column x, row y
func (im *Image) At(x, y int) float64 {
	return im.Pix[y*im.Width+x]
}

// Set stores v at column x, row y
func (im *Image) Set(x, y int, v float64) {
	im.Pix[y*im.Width+x] = v
}

// Row returns row y as a slice sharing the image's storage
func (im *Image) Row(y int) []float64 {
	return im.Pix[y*im.Width : (y+1)*im.Width]
}

// Empty reports whether the image has no pixels
func (im *Image) Empty() bool {
	return im.Width == 0 || im.Height == 0
}

// Clone returns a deep copy of the image
func (im *Image) Clone() *Image {
	out := NewImage(im.Width, im.Height)
	copy(out.Pix, im.Pix)
	return out
}

// Crop copies the pixels inside roi into a new image
func (im *Image) Crop(roi ROI) *Image {
	out := NewImage(roi.Width(), roi.Height())
	if out.Empty() {
		return out
	}
	for y := 0; y < out.Height; y++ {
		src := im.Row(roi.RowStart + y)[roi.ColStart:roi.ColEnd]
		copy(out.Row(y), src)
	}
	return out
}

// Max returns the largest intensity, or 0 for an empty image
func (im *Image) Max() float64 {
	if len(im.Pix) == 0 {
		return 0
	}
	max := im.Pix[0]
	for _, v := range im.Pix[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Scale returns a copy of the image with every intensity multiplied by k
func (im *Image) Scale(k float64) *Image {
	out := NewImage(im.Width, im.Height)
	for i, v := range im.Pix {
		out.Pix[i] = v * k
	}
	return out
}

// Mask is a boolean grid with the shape of the image it was derived from
type Mask struct {
	Width  int
	Height int
	Bits   []bool
}

// NewMask allocates an all-false mask
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Bits: make([]bool, width*height)}
}

// At reports whether column x, row y is foreground
func (m *Mask) At(x, y int) bool {
	return m.Bits[y*m.Width+x]
}

// Count returns the number of foreground pixels
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// ROI is an axis-aligned rectangle of an image. Both ranges are half-open:
// rows [RowStart, RowEnd) and columns [ColStart, ColEnd).
type ROI struct {
	RowStart int
	RowEnd   int
	ColStart int
	ColEnd   int
}

// Height returns the number of rows covered by the ROI
func (r ROI) Height() int {
	if r.RowEnd < r.RowStart {
		return 0
	}
	return r.RowEnd - r.RowStart
}

// Width returns the number of columns covered by the ROI
func (r ROI) Width() int {
	if r.ColEnd < r.ColStart {
		return 0
	}
	return r.ColEnd - r.ColStart
}

// Empty reports whether the ROI covers no pixels
func (r ROI) Empty() bool {
	return r.Height() == 0 || r.Width() == 0
}

func (r ROI) String() string {
	return fmt.Sprintf("rows [%d,%d) cols [%d,%d)", r.RowStart, r.RowEnd, r.ColStart, r.ColEnd)
}
