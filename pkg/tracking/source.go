package tracking

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"needle/internal/models"
)

// FrameSource provides the frames of a recording by 0-based position.
// Implementations must be safe for concurrent calls to Frame.
type FrameSource interface {
	Len() int
	Frame(i int) (*models.Frame, error)
}

// Frames adapts an in-memory slice of images to a FrameSource
type Frames []*models.Image

func (f Frames) Len() int { return len(f) }

func (f Frames) Frame(i int) (*models.Frame, error) {
	if i < 0 || i >= len(f) {
		return nil, fmt.Errorf("frame index %d out of range [0, %d)", i, len(f))
	}
	return &models.Frame{Image: f[i], Index: i + 1}, nil
}

// imageExtensions lists the file types DirSource picks up
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// DirSource reads frames from the image files of a directory. Files are
// ordered by the number in their names and decoded only when requested.
type DirSource struct {
	dir   string
	files []string
}

// NewDirSource lists the image files in dir
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}

	// Sort by frame number so frame10 follows frame9, falling back to the
	// name for files without a number
	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})

	return &DirSource{dir: dir, files: files}, nil
}

// Len returns the number of frames
func (d *DirSource) Len() int { return len(d.files) }

// Files returns the frame file names in frame order
func (d *DirSource) Files() []string {
	out := make([]string, len(d.files))
	copy(out, d.files)
	return out
}

// Frame decodes the i-th file as a grayscale frame
func (d *DirSource) Frame(i int) (*models.Frame, error) {
	if i < 0 || i >= len(d.files) {
		return nil, fmt.Errorf("frame index %d out of range [0, %d)", i, len(d.files))
	}

	name := d.files[i]
	img, err := imaging.Open(filepath.Join(d.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", name, err)
	}

	return &models.Frame{
		Image:    FromImage(img),
		Index:    i + 1,
		Filename: name,
	}, nil
}

// extractNumber returns the last run of digits in a filename, or -1
func extractNumber(filename string) int {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	end := -1
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] >= '0' && base[i] <= '9' {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return -1
	}

	start := end - 1
	for start > 0 && base[start-1] >= '0' && base[start-1] <= '9' {
		start--
	}

	num, err := strconv.Atoi(base[start:end])
	if err != nil {
		return -1
	}
	return num
}
