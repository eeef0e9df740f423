package preprocess

import (
	"errors"
	"fmt"

	"needle/internal/models"
)

// ErrNoRegionFound is returned when a mask has no foreground pixels
var ErrNoRegionFound = errors.New("no foreground region found")

var (
	offsets4 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	offsets8 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// Label assigns a component number to every foreground pixel of mask.
// Background pixels get label 0 and components are numbered from 1 in the
// raster order of their first pixel. sizes[k] is the pixel count of
// component k; sizes[0] is always 0. connectivity must be 4 or 8.
func Label(mask *models.Mask, connectivity int) ([]int, []int) {
	var offsets [][2]int
	switch connectivity {
	case 4:
		offsets = offsets4
	case 8:
		offsets = offsets8
	default:
		panic(fmt.Sprintf("preprocess: unsupported connectivity %d", connectivity))
	}

	w, h := mask.Width, mask.Height
	labels := make([]int, w*h)
	sizes := []int{0}
	queue := make([]int, 0, 64)

	for start, fg := range mask.Bits {
		if !fg || labels[start] != 0 {
			continue
		}

		label := len(sizes)
		size := 0
		labels[start] = label
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			size++
			px, py := p%w, p/w
			for _, o := range offsets {
				nx, ny := px+o[0], py+o[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				n := ny*w + nx
				if mask.Bits[n] && labels[n] == 0 {
					labels[n] = label
					queue = append(queue, n)
				}
			}
		}
		sizes = append(sizes, size)
	}

	return labels, sizes
}

// boundingBox returns the tight half-open box around every pixel carrying label
func boundingBox(labels []int, label, w, h int) models.ROI {
	box := models.ROI{RowStart: h, RowEnd: 0, ColStart: w, ColEnd: 0}
	for i, l := range labels {
		if l != label {
			continue
		}
		x, y := i%w, i/w
		box.RowStart = min(box.RowStart, y)
		box.RowEnd = max(box.RowEnd, y+1)
		box.ColStart = min(box.ColStart, x)
		box.ColEnd = max(box.ColEnd, x+1)
	}
	return box
}

// PadROI widens box by padding pixels on every side. Each bound is clipped
// to [0, dim-1], so a box touching the far edge loses its last row or column.
func PadROI(box models.ROI, padding, height, width int) models.ROI {
	return models.ROI{
		RowStart: clip(box.RowStart-padding, 0, height-1),
		RowEnd:   clip(box.RowEnd+padding, 0, height-1),
		ColStart: clip(box.ColStart-padding, 0, width-1),
		ColEnd:   clip(box.ColEnd+padding, 0, width-1),
	}
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ExtractROI finds the largest connected foreground component of mask and
// returns its bounding box padded by int(paddingFraction * max(H, W)).
// Ties between equally sized components go to the one found first.
func ExtractROI(mask *models.Mask, paddingFraction float64, connectivity int) (models.ROI, error) {
	labels, sizes := Label(mask, connectivity)
	if len(sizes) < 2 {
		return models.ROI{}, ErrNoRegionFound
	}

	best := 1
	for k := 2; k < len(sizes); k++ {
		if sizes[k] > sizes[best] {
			best = k
		}
	}

	box := boundingBox(labels, best, mask.Width, mask.Height)
	padding := int(float64(max(mask.Height, mask.Width)) * paddingFraction)
	return PadROI(box, padding, mask.Height, mask.Width), nil
}
