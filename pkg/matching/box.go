package matching

import (
	"segvalidate/internal/models"
)

// Intersection returns the per-axis overlap length min(stop) - max(start).
// A negative value means the boxes are separated along that axis.
func Intersection(a, b models.Box) [3]int {
	var d [3]int
	for axis := 0; axis < 3; axis++ {
		d[axis] = min(a[axis].Stop, b[axis].Stop) - max(a[axis].Start, b[axis].Start)
	}
	return d
}

// Overlaps reports whether no axis separates the two boxes. Boxes that only
// touch (zero length along an axis) count as overlapping; the exact voxel
// test decides those pairs.
func Overlaps(a, b models.Box) bool {
	d := Intersection(a, b)
	return d[0] >= 0 && d[1] >= 0 && d[2] >= 0
}

// OverlapScore is the symmetric box overlap 2*I / (V1 + V2), or 0 when the
// boxes do not overlap.
func OverlapScore(a, b models.Box) float64 {
	if !Overlaps(a, b) {
		return 0
	}
	d := Intersection(a, b)
	total := a.Volume() + b.Volume()
	if total == 0 {
		return 0
	}
	return 2 * float64(d[0]*d[1]*d[2]) / float64(total)
}

// LenientOverlapScore is I / min(V1, V2), or 0 when the boxes do not
// overlap. It reaches 1 when one box is fully contained in the other.
func LenientOverlapScore(a, b models.Box) float64 {
	if !Overlaps(a, b) {
		return 0
	}
	d := Intersection(a, b)
	smallest := min(a.Volume(), b.Volume())
	if smallest == 0 {
		return 0
	}
	return float64(d[0]*d[1]*d[2]) / float64(smallest)
}

// UnionBox returns the smallest box enclosing both a and b.
func UnionBox(a, b models.Box) models.Box {
	var u models.Box
	for axis := 0; axis < 3; axis++ {
		u[axis] = models.Interval{
			Start: min(a[axis].Start, b[axis].Start),
			Stop:  max(a[axis].Stop, b[axis].Stop),
		}
	}
	return u
}
