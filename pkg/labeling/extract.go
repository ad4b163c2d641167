package labeling

import (
	"errors"
	"fmt"
	"math"

	"segvalidate/internal/models"
)

// ErrInvalidThreshold is returned when the minimum voxel count is negative.
var ErrInvalidThreshold = errors.New("minimum voxel count must be non-negative")

// Extract labels the foreground of vol, discards components with fewer than
// minVoxels voxels and relabels the remainder to the contiguous range 1..K.
// It returns the cleaned label volume and its candidates in ascending label
// order. The input volume is never modified.
//
// An all-background input yields an all-zero volume and no candidates
// without running the labeling.
func Extract(vol *models.Volume, minVoxels int) (*models.Volume, []models.Candidate, error) {
	if minVoxels < 0 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, minVoxels)
	}
	if err := vol.Validate(); err != nil {
		return nil, nil, err
	}

	if vol.CountNonZero() == 0 {
		return models.NewVolume(vol.Width, vol.Height, vol.Depth), nil, nil
	}

	labels, n := Label(vol)

	counts := make([]int, n+1)
	for _, id := range labels.Data {
		counts[id]++
	}

	// labels is a working copy owned here, so it is cleaned in place
	for i, id := range labels.Data {
		if id == 0 {
			continue
		}
		if counts[id] < minVoxels {
			labels.Data[i] = 0
		} else {
			labels.Data[i] = 1
		}
	}

	cleaned, _ := Label(labels)
	return cleaned, Candidates(cleaned), nil
}

// Candidates computes the bounding box and voxel count of every instance in
// an already labeled volume. Ids without voxels are skipped.
func Candidates(labels *models.Volume) []models.Candidate {
	var maxID uint32
	for _, id := range labels.Data {
		if id > maxID {
			maxID = id
		}
	}
	if maxID == 0 {
		return nil
	}

	boxes := make([]models.Box, maxID+1)
	for i := range boxes {
		for axis := 0; axis < 3; axis++ {
			boxes[i][axis] = models.Interval{Start: math.MaxInt, Stop: math.MinInt}
		}
	}
	counts := make([]int, maxID+1)

	for z := 0; z < labels.Depth; z++ {
		for y := 0; y < labels.Height; y++ {
			for x := 0; x < labels.Width; x++ {
				id := labels.Data[labels.Index(x, y, z)]
				if id == 0 {
					continue
				}
				counts[id]++
				b := &boxes[id]
				for axis, c := range [3]int{x, y, z} {
					if c < b[axis].Start {
						b[axis].Start = c
					}
					if c+1 > b[axis].Stop {
						b[axis].Stop = c + 1
					}
				}
			}
		}
	}

	candidates := make([]models.Candidate, 0, maxID)
	for id := uint32(1); id <= maxID; id++ {
		if counts[id] == 0 {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Label:      id,
			Box:        boxes[id],
			VoxelCount: counts[id],
		})
	}

	return candidates
}
