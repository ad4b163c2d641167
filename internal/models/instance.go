package models

import "fmt"

// Interval is a half-open [Start, Stop) range along one axis.
type Interval struct {
	Start int
	Stop  int
}

// Len returns the number of voxels covered by the interval.
func (i Interval) Len() int {
	return i.Stop - i.Start
}

// Box is an axis-aligned bounding box, one interval per axis (x, y, z).
type Box [3]Interval

// Len returns the extent of the box along axis.
func (b Box) Len(axis int) int {
	return b[axis].Len()
}

// Volume returns the number of voxels enclosed by the box.
func (b Box) Volume() int {
	return b.Len(0) * b.Len(1) * b.Len(2)
}

// Contains reports whether o lies entirely inside b.
func (b Box) Contains(o Box) bool {
	for axis := 0; axis < 3; axis++ {
		if o[axis].Start < b[axis].Start || o[axis].Stop > b[axis].Stop || o[axis].Start > o[axis].Stop {
			return false
		}
	}
	return true
}

func (b Box) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d, %d:%d]",
		b[0].Start, b[0].Stop, b[1].Start, b[1].Stop, b[2].Start, b[2].Stop)
}

// Candidate is one connected instance of a label volume after small-object
// filtering.
type Candidate struct {
	// Label is the instance id, unique within its volume and starting at 1
	Label uint32

	// Box is the smallest box enclosing all voxels of the instance
	Box Box

	// VoxelCount is the number of voxels carrying Label
	VoxelCount int
}

// SubVolume is a binary mask of one isolated instance restricted to a box.
type SubVolume struct {
	Box  Box
	Mask []uint8
}

// Count returns the number of foreground voxels in the mask.
func (s *SubVolume) Count() int {
	n := 0
	for _, m := range s.Mask {
		if m != 0 {
			n++
		}
	}
	return n
}

// MatchRecord pairs one ground-truth instance with one detection instance
// whose Dice overlap is strictly positive.
type MatchRecord struct {
	GTLabel  uint32
	DetLabel uint32
	Dice     float64

	// GT and Det are only populated in study mode
	GT  *SubVolume
	Det *SubVolume
}

// Result holds the case-level detection quality metrics.
type Result struct {
	AverageDice          float64
	Recall               float64
	Precision            float64
	LargestComponentDice float64
}

// DefaultResult is the result of a case where nothing was matched and
// nothing was wrongly reported.
func DefaultResult() Result {
	return Result{Precision: 1.0}
}

// Tuple returns the metrics as (average dice, recall, precision, largest
// component dice).
func (r Result) Tuple() [4]float64 {
	return [4]float64{r.AverageDice, r.Recall, r.Precision, r.LargestComponentDice}
}

func (r Result) String() string {
	return fmt.Sprintf("dice=%.4f recall=%.4f precision=%.4f largest=%.4f",
		r.AverageDice, r.Recall, r.Precision, r.LargestComponentDice)
}
