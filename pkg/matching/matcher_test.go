package matching

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segvalidate/internal/models"
	"segvalidate/pkg/labeling"
)

func box(x0, x1, y0, y1, z0, z1 int) models.Box {
	return models.Box{{Start: x0, Stop: x1}, {Start: y0, Stop: y1}, {Start: z0, Stop: z1}}
}

func fillBox(vol *models.Volume, b models.Box, value uint32) {
	for z := b[2].Start; z < b[2].Stop; z++ {
		for y := b[1].Start; y < b[1].Stop; y++ {
			for x := b[0].Start; x < b[0].Stop; x++ {
				vol.Set(x, y, z, value)
			}
		}
	}
}

// extract labels vol with no size filtering
func extract(t *testing.T, vol *models.Volume) (*models.Volume, []models.Candidate) {
	t.Helper()
	labels, candidates, err := labeling.Extract(vol, 0)
	require.NoError(t, err)
	return labels, candidates
}

func TestIntersection(t *testing.T) {
	a := box(0, 4, 0, 4, 0, 4)
	b := box(2, 6, 5, 7, 4, 8)
	assert.Equal(t, [3]int{2, -1, 0}, Intersection(a, b))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     models.Box
		expected bool
	}{
		{name: "identical", a: box(0, 3, 0, 3, 0, 3), b: box(0, 3, 0, 3, 0, 3), expected: true},
		{name: "partial", a: box(0, 3, 0, 3, 0, 3), b: box(2, 5, 1, 4, 0, 2), expected: true},
		{name: "contained", a: box(0, 10, 0, 10, 0, 10), b: box(4, 5, 4, 5, 4, 5), expected: true},
		{name: "touching faces", a: box(0, 3, 0, 3, 0, 3), b: box(3, 6, 0, 3, 0, 3), expected: true},
		{name: "separated in x", a: box(0, 3, 0, 3, 0, 3), b: box(4, 6, 0, 3, 0, 3), expected: false},
		{name: "separated in z", a: box(0, 3, 0, 3, 0, 3), b: box(0, 3, 0, 3, 5, 6), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.expected, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestOverlapScores(t *testing.T) {
	a := box(0, 4, 0, 4, 0, 4) // 64
	b := box(2, 4, 0, 4, 0, 4) // 32, fully inside a

	assert.InDelta(t, 2*32.0/96.0, OverlapScore(a, b), 1e-12)
	assert.InDelta(t, 1.0, LenientOverlapScore(a, b), 1e-12)

	far := box(10, 12, 10, 12, 10, 12)
	assert.Zero(t, OverlapScore(a, far))
	assert.Zero(t, LenientOverlapScore(a, far))

	assert.InDelta(t, 1.0, OverlapScore(a, a), 1e-12)
}

func TestUnionBox(t *testing.T) {
	u := UnionBox(box(1, 3, 4, 6, 0, 2), box(2, 5, 0, 5, 1, 9))
	assert.Equal(t, box(1, 5, 0, 6, 0, 9), u)
}

func TestIsolateIgnoresOtherLabels(t *testing.T) {
	labels := models.NewVolume(4, 4, 1)
	labels.Set(1, 1, 0, 1)
	labels.Set(2, 1, 0, 2)
	labels.Set(2, 2, 0, 1)

	mask, err := Isolate(labels, box(1, 3, 1, 3, 0, 1), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 3}, mask.ToArray())
}

func TestIsolateOutOfBounds(t *testing.T) {
	_, err := Isolate(models.NewVolume(2, 2, 2), box(0, 3, 0, 1, 0, 1), 1)
	assert.Error(t, err)
}

func TestDice(t *testing.T) {
	a := roaring.BitmapOf(0, 1, 2, 3)
	b := roaring.BitmapOf(2, 3, 4, 5)
	assert.InDelta(t, 0.5, Dice(a, b), 1e-12)
	assert.InDelta(t, 1.0, Dice(a, a), 1e-12)
	assert.Zero(t, Dice(roaring.New(), roaring.New()))
}

func TestDense(t *testing.T) {
	sub := Dense(roaring.BitmapOf(0, 5), box(0, 2, 0, 3, 0, 1))
	assert.Equal(t, []uint8{1, 0, 0, 0, 0, 1}, sub.Mask)
	assert.Equal(t, 2, sub.Count())
}

func TestMatchIdenticalVolumes(t *testing.T) {
	vol := models.NewVolume(8, 8, 8)
	fillBox(vol, box(2, 5, 2, 5, 2, 5), 1)
	gtLabels, gt := extract(t, vol)
	detLabels, det := extract(t, vol.Clone())

	matches, err := Match(gt, det, gtLabels, detLabels)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(1), matches[0].GTLabel)
	assert.Equal(t, uint32(1), matches[0].DetLabel)
	assert.InDelta(t, 1.0, matches[0].Dice, 1e-12)
	assert.Nil(t, matches[0].GT)
	assert.Nil(t, matches[0].Det)
}

func TestMatchDisjointInstances(t *testing.T) {
	gtVol := models.NewVolume(10, 10, 10)
	fillBox(gtVol, box(0, 3, 0, 3, 0, 3), 1)
	detVol := models.NewVolume(10, 10, 10)
	fillBox(detVol, box(6, 9, 6, 9, 6, 9), 1)

	gtLabels, gt := extract(t, gtVol)
	detLabels, det := extract(t, detVol)
	assert.False(t, Overlaps(gt[0].Box, det[0].Box))

	matches, err := Match(gt, det, gtLabels, detLabels)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchTouchingBoxesWithoutVoxelOverlap(t *testing.T) {
	gtVol := models.NewVolume(6, 3, 3)
	fillBox(gtVol, box(0, 3, 0, 3, 0, 3), 1)
	detVol := models.NewVolume(6, 3, 3)
	fillBox(detVol, box(3, 6, 0, 3, 0, 3), 1)

	gtLabels, gt := extract(t, gtVol)
	detLabels, det := extract(t, detVol)
	require.True(t, Overlaps(gt[0].Box, det[0].Box))

	matches, err := Match(gt, det, gtLabels, detLabels)
	require.NoError(t, err)
	assert.Empty(t, matches, "zero dice must not produce a record")
}

func TestMatchOneGroundTruthTwoDetections(t *testing.T) {
	gtVol := models.NewVolume(12, 4, 4)
	fillBox(gtVol, box(0, 12, 0, 4, 0, 4), 1)
	detVol := models.NewVolume(12, 4, 4)
	fillBox(detVol, box(0, 4, 0, 4, 0, 4), 1)
	fillBox(detVol, box(8, 12, 0, 4, 0, 4), 1)

	gtLabels, gt := extract(t, gtVol)
	detLabels, det := extract(t, detVol)
	require.Len(t, gt, 1)
	require.Len(t, det, 2)

	matches, err := Match(gt, det, gtLabels, detLabels)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	for i, m := range matches {
		assert.Equal(t, uint32(1), m.GTLabel)
		assert.Equal(t, uint32(i+1), m.DetLabel)
		// gt has 192 voxels, each detection 64, all inside gt
		assert.InDelta(t, 2*64.0/256.0, m.Dice, 1e-12)
	}
}

func TestMatchIsolatesNeighbouringInstances(t *testing.T) {
	// A second gt instance inside the union box must not leak into the dice
	gtVol := models.NewVolume(9, 3, 1)
	fillBox(gtVol, box(0, 3, 0, 3, 0, 1), 1)
	fillBox(gtVol, box(4, 5, 0, 3, 0, 1), 1)
	detVol := models.NewVolume(9, 3, 1)
	fillBox(detVol, box(2, 6, 0, 3, 0, 1), 1)

	gtLabels, gt := extract(t, gtVol)
	detLabels, det := extract(t, detVol)
	require.Len(t, gt, 2)

	matches, err := Match(gt, det, gtLabels, detLabels, WithSubVolumes())
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// gt 1: 9 voxels, det: 12 voxels, overlap column x=2 -> 3 voxels
	assert.Equal(t, uint32(1), matches[0].GTLabel)
	assert.InDelta(t, 6.0/21.0, matches[0].Dice, 1e-12)
	require.NotNil(t, matches[0].GT)
	assert.Equal(t, box(0, 6, 0, 3, 0, 1), matches[0].GT.Box)
	assert.Equal(t, 9, matches[0].GT.Count())
	assert.Equal(t, 12, matches[0].Det.Count())

	// gt 2: 3 voxels fully covered by det
	assert.Equal(t, uint32(2), matches[1].GTLabel)
	assert.InDelta(t, 6.0/15.0, matches[1].Dice, 1e-12)
}

func TestMatchEmptyCandidates(t *testing.T) {
	labels := models.NewVolume(2, 2, 2)
	matches, err := Match(nil, nil, labels, labels.Clone())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchShapeMismatch(t *testing.T) {
	_, err := Match(nil, nil, models.NewVolume(2, 2, 2), models.NewVolume(2, 2, 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrShapeMismatch)

	var shapeErr *models.ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, [3]int{2, 2, 3}, shapeErr.Actual)
}

func TestPairs(t *testing.T) {
	gt := []models.Candidate{{Label: 1, Box: box(0, 4, 0, 4, 0, 4)}}
	det := []models.Candidate{
		{Label: 1, Box: box(2, 4, 0, 4, 0, 4)},
		{Label: 2, Box: box(8, 9, 8, 9, 8, 9)},
	}

	pairs := Pairs(gt, det)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint32(1), pairs[0].DetLabel)
	assert.InDelta(t, 1.0, pairs[0].Lenient, 1e-12)
	assert.InDelta(t, 2.0/3.0, pairs[0].Score, 1e-12)
}
