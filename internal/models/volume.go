package models

import "fmt"

// Volume represents a 3D grid of non-negative integer voxels.
// In a label volume every positive value identifies one instance; in a
// binary volume only zero and non-zero are meaningful.
type Volume struct {
	// Data is the voxel data as a 1D array in row-major order (x fastest)
	Data []uint32

	// Width is the size of the volume along x (axis 0)
	Width int

	// Height is the size of the volume along y (axis 1)
	Height int

	// Depth is the size of the volume along z (axis 2)
	Depth int
}

// NewVolume allocates an all-background volume of the given dimensions.
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:   make([]uint32, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Len returns the number of voxels in the volume.
func (v *Volume) Len() int {
	return v.Width * v.Height * v.Depth
}

// Index converts voxel coordinates to the flat data index.
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the voxel value at (x, y, z).
func (v *Volume) At(x, y, z int) uint32 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a voxel value at (x, y, z).
func (v *Volume) Set(x, y, z int, value uint32) {
	v.Data[v.Index(x, y, z)] = value
}

// Shape returns the dimensions as (width, height, depth).
func (v *Volume) Shape() [3]int {
	return [3]int{v.Width, v.Height, v.Depth}
}

// SameShape reports whether both volumes have identical dimensions.
func (v *Volume) SameShape(o *Volume) bool {
	return v.Shape() == o.Shape()
}

// Bounds returns the box covering the whole volume.
func (v *Volume) Bounds() Box {
	return Box{{0, v.Width}, {0, v.Height}, {0, v.Depth}}
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	data := make([]uint32, len(v.Data))
	copy(data, v.Data)
	return &Volume{Data: data, Width: v.Width, Height: v.Height, Depth: v.Depth}
}

// CountNonZero returns the number of foreground voxels.
func (v *Volume) CountNonZero() int {
	n := 0
	for _, val := range v.Data {
		if val != 0 {
			n++
		}
	}
	return n
}

// Validate checks that the data length agrees with the dimensions.
func (v *Volume) Validate() error {
	if v.Width < 0 || v.Height < 0 || v.Depth < 0 {
		return fmt.Errorf("negative volume dimensions %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if len(v.Data) != v.Len() {
		return fmt.Errorf("volume data has %d voxels, dimensions %dx%dx%d require %d",
			len(v.Data), v.Width, v.Height, v.Depth, v.Len())
	}
	return nil
}

// Region extracts the sub-volume covered by box. The box must lie within the
// volume bounds.
func (v *Volume) Region(box Box) (*Volume, error) {
	if !v.Bounds().Contains(box) {
		return nil, fmt.Errorf("region %v extends beyond volume boundaries %v", box, v.Bounds())
	}

	sizeX, sizeY, sizeZ := box.Len(0), box.Len(1), box.Len(2)
	region := NewVolume(sizeX, sizeY, sizeZ)

	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			src := v.Index(box[0].Start, box[1].Start+y, box[2].Start+z)
			dst := region.Index(0, y, z)
			copy(region.Data[dst:dst+sizeX], v.Data[src:src+sizeX])
		}
	}

	return region, nil
}
