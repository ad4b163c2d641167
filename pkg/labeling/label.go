// Package labeling extracts discrete object instances from 3D volumes through
// connected-component analysis.
//
// Components use 26-connectivity: two foreground voxels belong to the same
// instance when they touch by a face, an edge or a corner. Voxels are scanned
// in raster order (x fastest, then y, then z) and final ids are handed out in
// order of each component's first voxel, so identical inputs always produce
// identical label volumes.
package labeling

import (
	"segvalidate/internal/models"
)

// backwardOffsets lists the 13 neighbours of a voxel that precede it in
// raster order.
var backwardOffsets = func() [][3]int {
	var offsets [][3]int
	for dz := -1; dz <= 0; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dz == 0 && (dy > 0 || (dy == 0 && dx >= 0)) {
					continue
				}
				offsets = append(offsets, [3]int{dx, dy, dz})
			}
		}
	}
	return offsets
}()

// disjointSet is a union-find forest over provisional labels. Index 0 is
// reserved for background.
type disjointSet struct {
	parent []uint32
}

func (s *disjointSet) add() uint32 {
	id := uint32(len(s.parent))
	s.parent = append(s.parent, id)
	return id
}

func (s *disjointSet) find(id uint32) uint32 {
	root := id
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for s.parent[id] != root {
		next := s.parent[id]
		s.parent[id] = root
		id = next
	}
	return root
}

// union keeps the smaller root, which belongs to the earlier voxel in scan order.
func (s *disjointSet) union(a, b uint32) {
	ra, rb := s.find(a), s.find(b)
	switch {
	case ra < rb:
		s.parent[rb] = ra
	case rb < ra:
		s.parent[ra] = rb
	}
}

// Label partitions the foreground voxels of vol into 26-connected components.
// It returns a new label volume with ids 1..n and the number of components n.
// The input volume is never modified.
func Label(vol *models.Volume) (*models.Volume, int) {
	w, h, d := vol.Width, vol.Height, vol.Depth
	out := models.NewVolume(w, h, d)
	set := &disjointSet{parent: []uint32{0}}

	// First pass: provisional labels and equivalences
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := vol.Index(x, y, z)
				if vol.Data[idx] == 0 {
					continue
				}

				var current uint32
				for _, off := range backwardOffsets {
					nx, ny, nz := x+off[0], y+off[1], z+off[2]
					if nx < 0 || ny < 0 || nz < 0 || nx >= w || ny >= h {
						continue
					}
					neighbour := out.Data[out.Index(nx, ny, nz)]
					if neighbour == 0 {
						continue
					}
					if current == 0 {
						current = neighbour
					} else if neighbour != current {
						set.union(current, neighbour)
					}
				}
				if current == 0 {
					current = set.add()
				}
				out.Data[idx] = current
			}
		}
	}

	// Second pass: resolve equivalences to compact ids in first-seen order
	final := make([]uint32, len(set.parent))
	var next uint32
	for i, provisional := range out.Data {
		if provisional == 0 {
			continue
		}
		root := set.find(provisional)
		if final[root] == 0 {
			next++
			final[root] = next
		}
		out.Data[i] = final[root]
	}

	return out, int(next)
}
