// Package visualization renders the isolated sub-volumes of a match as slice
// previews, ground truth in red, detection in green and their overlap in
// yellow.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"segvalidate/internal/models"
)

var (
	gtColor      = color.RGBA{R: 255, A: 255}
	detColor     = color.RGBA{G: 255, A: 255}
	overlapColor = color.RGBA{R: 255, G: 255, A: 255}
	background   = color.RGBA{A: 255}
)

// Viewer extracts overlay slices from one match record.
type Viewer struct {
	gt  []uint8
	det []uint8

	// dimensions of the union box
	width  int
	height int
	depth  int
}

// NewViewer creates a viewer over the sub-volumes of a study match record.
func NewViewer(match models.MatchRecord) (*Viewer, error) {
	if match.GT == nil || match.Det == nil {
		return nil, fmt.Errorf("match %d/%d carries no sub-volumes", match.GTLabel, match.DetLabel)
	}
	if match.GT.Box != match.Det.Box {
		return nil, fmt.Errorf("sub-volume boxes differ: %v vs %v", match.GT.Box, match.Det.Box)
	}

	box := match.GT.Box
	v := &Viewer{
		gt:     match.GT.Mask,
		det:    match.Det.Mask,
		width:  box.Len(0),
		height: box.Len(1),
		depth:  box.Len(2),
	}
	if len(v.gt) != box.Volume() || len(v.det) != box.Volume() {
		return nil, fmt.Errorf("sub-volume masks do not cover box %v", box)
	}
	return v, nil
}

func (v *Viewer) colorAt(x, y, z int) color.RGBA {
	idx := z*v.width*v.height + y*v.width + x
	switch g, d := v.gt[idx] != 0, v.det[idx] != 0; {
	case g && d:
		return overlapColor
	case g:
		return gtColor
	case d:
		return detColor
	}
	return background
}

// ExtractSlice extracts a 2D overlay slice from the union box along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.RGBA

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetRGBA(z, y, v.colorAt(position, y, z))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetRGBA(x, z, v.colorAt(x, position, z))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetRGBA(x, y, v.colorAt(x, y, position))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
