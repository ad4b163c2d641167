package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segvalidate/internal/models"
)

// testMatch builds a 4x3x2 union box where gt covers x<2 and det covers x>=1
func testMatch() models.MatchRecord {
	box := models.Box{{Start: 0, Stop: 4}, {Start: 0, Stop: 3}, {Start: 5, Stop: 7}}
	gt := &models.SubVolume{Box: box, Mask: make([]uint8, box.Volume())}
	det := &models.SubVolume{Box: box, Mask: make([]uint8, box.Volume())}

	for z := 0; z < 2; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				idx := z*12 + y*4 + x
				if x < 2 {
					gt.Mask[idx] = 1
				}
				if x >= 1 && y < 2 {
					det.Mask[idx] = 1
				}
			}
		}
	}

	return models.MatchRecord{GTLabel: 1, DetLabel: 1, Dice: 0.5, GT: gt, Det: det}
}

func TestNewViewer(t *testing.T) {
	v, err := NewViewer(testMatch())
	require.NoError(t, err)
	assert.Equal(t, 4, v.width)
	assert.Equal(t, 3, v.height)
	assert.Equal(t, 2, v.depth)
}

func TestNewViewerWithoutSubVolumes(t *testing.T) {
	_, err := NewViewer(models.MatchRecord{GTLabel: 1, DetLabel: 2})
	assert.Error(t, err)

	m := testMatch()
	m.Det.Box[0].Stop = 5
	_, err = NewViewer(m)
	assert.Error(t, err)
}

func TestExtractSliceColors(t *testing.T) {
	v, err := NewViewer(testMatch())
	require.NoError(t, err)

	img, err := v.ExtractSlice("z", 1)
	require.NoError(t, err)
	rgba, ok := img.(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 4, 3), rgba.Bounds())

	assert.Equal(t, gtColor, rgba.RGBAAt(0, 0))
	assert.Equal(t, overlapColor, rgba.RGBAAt(1, 0))
	assert.Equal(t, detColor, rgba.RGBAAt(3, 1))
	assert.Equal(t, background, rgba.RGBAAt(3, 2))
}

func TestExtractSliceAxes(t *testing.T) {
	v, err := NewViewer(testMatch())
	require.NoError(t, err)

	tests := []struct {
		axis   string
		pos    int
		bounds image.Rectangle
	}{
		{axis: "x", pos: 3, bounds: image.Rect(0, 0, 2, 3)},
		{axis: "Y", pos: 2, bounds: image.Rect(0, 0, 4, 2)},
		{axis: "z", pos: 0, bounds: image.Rect(0, 0, 4, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.axis, func(t *testing.T) {
			img, err := v.ExtractSlice(tt.axis, tt.pos)
			require.NoError(t, err)
			assert.Equal(t, tt.bounds, img.Bounds())
		})
	}

	_, err = v.ExtractSlice("w", 0)
	assert.Error(t, err)
	_, err = v.ExtractSlice("z", 2)
	assert.Error(t, err)
	_, err = v.ExtractSlice("x", -1)
	assert.Error(t, err)
}

func TestSaveSliceSequence(t *testing.T) {
	v, err := NewViewer(testMatch())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "z")
	require.NoError(t, v.SaveSliceSequence("z", dir))

	for pos := 0; pos < 2; pos++ {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("slice_z_%03d.jpg", pos)))
		assert.NoError(t, err)
	}

	assert.Error(t, v.SaveSliceSequence("q", dir))
}
