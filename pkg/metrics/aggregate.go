// Package metrics reduces instance matches into case-level detection quality
// metrics.
package metrics

import (
	"gonum.org/v1/gonum/stat"

	"segvalidate/internal/models"
)

// Aggregate computes the mean Dice, recall, precision and largest component
// Dice of a case.
//
// Recall and precision count distinct matched ids, so an instance matching
// several counterparts is counted once, while every record contributes to the
// mean Dice. With no ground-truth instance recall is 0, and precision is
// forced to 0 as soon as any detection exists.
func Aggregate(matches []models.MatchRecord, gt, det []models.Candidate) models.Result {
	result := models.DefaultResult()

	if len(matches) > 0 {
		dices := make([]float64, len(matches))
		gtHits := make(map[uint32]struct{})
		detHits := make(map[uint32]struct{})
		for i, m := range matches {
			dices[i] = m.Dice
			gtHits[m.GTLabel] = struct{}{}
			detHits[m.DetLabel] = struct{}{}
		}

		result.AverageDice = stat.Mean(dices, nil)
		if len(gt) > 0 {
			result.Recall = float64(len(gtHits)) / float64(len(gt))
		}
		if len(det) > 0 {
			result.Precision = float64(len(detHits)) / float64(len(det))
		}
		result.LargestComponentDice = LargestComponentDice(matches, gt)
	}

	if len(gt) == 0 && len(det) > 0 {
		result.Precision = 0
	}

	return result
}

// Largest returns the candidate with the greatest voxel count, the first one
// in id order on ties. ok is false when there are no candidates.
func Largest(candidates []models.Candidate) (largest models.Candidate, ok bool) {
	for i, c := range candidates {
		if i == 0 || c.VoxelCount > largest.VoxelCount {
			largest = c
		}
	}
	return largest, len(candidates) > 0
}

// LargestComponentDice returns the Dice of the first record matching the
// largest ground-truth candidate, or 0 when it is unmatched.
func LargestComponentDice(matches []models.MatchRecord, gt []models.Candidate) float64 {
	largest, ok := Largest(gt)
	if !ok {
		return 0
	}
	for _, m := range matches {
		if m.GTLabel == largest.Label {
			return m.Dice
		}
	}
	return 0
}
