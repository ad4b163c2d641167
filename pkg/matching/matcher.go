// Package matching pairs ground-truth instances with detection instances.
//
// Every (ground truth, detection) pair is first tested with a cheap bounding
// box check. Surviving pairs are verified at voxel level inside the union of
// both boxes, where each label volume is reduced to the voxels carrying the
// exact id under test. Any pair with a strictly positive Dice coefficient is
// a match. Matches are not deduplicated: one instance may match several
// counterparts.
package matching

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"segvalidate/internal/models"
)

// Option configures Match.
type Option func(*options)

type options struct {
	subVolumes bool
}

// WithSubVolumes attaches the isolated ground-truth and detection masks to
// every match record.
func WithSubVolumes() Option {
	return func(o *options) {
		o.subVolumes = true
	}
}

// Match compares every ground-truth candidate against every detection
// candidate, ground truth first, and returns one record per pair with a
// strictly positive Dice coefficient.
func Match(gt, det []models.Candidate, gtLabels, detLabels *models.Volume, opts ...Option) ([]models.MatchRecord, error) {
	if err := models.CheckShapes(gtLabels, detLabels); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var matches []models.MatchRecord
	for _, g := range gt {
		for _, d := range det {
			if !Overlaps(g.Box, d.Box) {
				continue
			}

			roi := UnionBox(g.Box, d.Box)
			gtMask, err := Isolate(gtLabels, roi, g.Label)
			if err != nil {
				return nil, fmt.Errorf("ground truth instance %d: %w", g.Label, err)
			}
			detMask, err := Isolate(detLabels, roi, d.Label)
			if err != nil {
				return nil, fmt.Errorf("detection instance %d: %w", d.Label, err)
			}

			dice := Dice(gtMask, detMask)
			if dice <= 0 {
				continue
			}

			record := models.MatchRecord{
				GTLabel:  g.Label,
				DetLabel: d.Label,
				Dice:     dice,
			}
			if o.subVolumes {
				record.GT = Dense(gtMask, roi)
				record.Det = Dense(detMask, roi)
			}
			matches = append(matches, record)
		}
	}

	return matches, nil
}

// Isolate extracts the sub-volume of labels covered by box and returns the
// box-local indices of the voxels carrying exactly id. Other instances
// falling inside the box are ignored.
func Isolate(labels *models.Volume, box models.Box, id uint32) (*roaring.Bitmap, error) {
	region, err := labels.Region(box)
	if err != nil {
		return nil, err
	}

	mask := roaring.New()
	for i, v := range region.Data {
		if v == id {
			mask.Add(uint32(i))
		}
	}
	return mask, nil
}

// Dice returns 2*|A∩B| / (|A|+|B|), or 0 when both masks are empty.
func Dice(a, b *roaring.Bitmap) float64 {
	total := a.GetCardinality() + b.GetCardinality()
	if total == 0 {
		return 0
	}
	return 2 * float64(a.AndCardinality(b)) / float64(total)
}

// Dense expands a box-local mask into a binary sub-volume.
func Dense(mask *roaring.Bitmap, box models.Box) *models.SubVolume {
	sub := &models.SubVolume{
		Box:  box,
		Mask: make([]uint8, box.Volume()),
	}
	it := mask.Iterator()
	for it.HasNext() {
		sub.Mask[it.Next()] = 1
	}
	return sub
}

// PairScore reports the box overlap scores of one overlapping candidate pair.
type PairScore struct {
	GTLabel  uint32
	DetLabel uint32
	Score    float64
	Lenient  float64
}

// Pairs lists every candidate pair whose boxes overlap together with the
// symmetric and lenient box scores. It is informational only; Match does not
// gate on either score.
func Pairs(gt, det []models.Candidate) []PairScore {
	var pairs []PairScore
	for _, g := range gt {
		for _, d := range det {
			if !Overlaps(g.Box, d.Box) {
				continue
			}
			pairs = append(pairs, PairScore{
				GTLabel:  g.Label,
				DetLabel: d.Label,
				Score:    OverlapScore(g.Box, d.Box),
				Lenient:  LenientOverlapScore(g.Box, d.Box),
			})
		}
	}
	return pairs
}
