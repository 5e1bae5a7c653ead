package mesh

import "fmt"

// Point is a vertex location, Y is unused in 1D
type Point [2]float64

// GeometryInfo holds the per-dimension counts of the reference cell. Algorithms take these as data instead of
// branching on the dimension.
type GeometryInfo struct {
	Dim             int
	VerticesPerCell int
	LinesPerCell    int // Bounding lines of the cell, zero in 1D where the cell is itself a line
	FacesPerCell    int
	ChildrenPerCell int
}

var geometries = [...]GeometryInfo{
	{},
	{Dim: 1, VerticesPerCell: 2, LinesPerCell: 0, FacesPerCell: 2, ChildrenPerCell: 2},
	{Dim: 2, VerticesPerCell: 4, LinesPerCell: 4, FacesPerCell: 4, ChildrenPerCell: 4},
}

func Geometry(dim int) GeometryInfo {
	if dim < 1 || dim >= len(geometries) {
		panic(fmt.Errorf("unsupported mesh dimension %d", dim))
	}
	return geometries[dim]
}

/*
Reference quadrilateral, vertices counter-clockwise from the origin:

	3 ---2--- 2
	|         |
	3         1
	|         |
	0 ---0--- 1

Lines always run from the lower to the higher coordinate, so two cells sharing a line see it with the same
orientation and agree on the order of the line's interior DOFs.
*/
var QuadLineVertices = [4][2]int{{0, 1}, {1, 2}, {3, 2}, {0, 3}}

// Children are numbered counter-clockwise from the lower left, matching the vertex they share with the parent
var childOffsets = [...][][2]int{
	{},
	{{0, 0}, {1, 0}},
	{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
}

// ChildOffset returns the position of the child within its parent in units of half the parent size
func ChildOffset(dim, child int) [2]int {
	return childOffsets[dim][child]
}

// UnitVertex returns the reference coordinates of a cell vertex
func UnitVertex(dim, vertex int) (p Point) {
	switch dim {
	case 1:
		p[0] = float64(vertex)
	case 2:
		off := childOffsets[2][vertex]
		p[0], p[1] = float64(off[0]), float64(off[1])
	}
	return
}
