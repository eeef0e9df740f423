package models

// Frame represents a single frame of a recording with its metadata
type Frame struct {
	// Image holds the frame intensities
	Image *Image

	// Index is the 1-based position of this frame in the sequence
	Index int

	// Filename is the original filename of the frame, empty for in-memory frames
	Filename string
}
