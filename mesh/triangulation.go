package mesh

import (
	"fmt"

	"github.com/notargets/godofs/types"
)

type CellRef struct {
	Level, Index int
}

var InvalidCell = CellRef{-1, -1}

func (cr CellRef) IsValid() bool { return cr.Level >= 0 && cr.Index >= 0 }

// Cell is a node of the refinement tree. Children of a cell are stored consecutively on the next level.
type Cell struct {
	Vertices   []int // Global vertex ids in reference order
	Lines      []int // Line indices on the cell's own level, nil in 1D
	FirstChild int   // Index of child 0 on Level+1, -1 without children
	Parent     int   // Index on Level-1, -1 on the coarse level
	Used       bool
	Subdomain  int
	center     int // Center vertex, kept for re-refinement after coarsening
	inner      int // First of the four interior child lines, 2D only
	refine     bool
	coarsen    bool
}

func (c *Cell) HasChildren() bool { return c.FirstChild >= 0 }
func (c *Cell) Active() bool      { return c.Used && c.FirstChild < 0 }

type Line struct {
	Vertices   [2]int
	FirstChild int // Index of child 0 on the next level, -1 if never refined
	Parent     int
	Boundary   bool
	Used       bool
}

type level struct {
	cells       []Cell
	lines       []Line
	lineCells   [][]int       // Used cells of this level bounded by each line
	vertexCells map[int][]int // Used cells of this level sharing each vertex
}

// Triangulation is a hierarchy of isotropically refined cells on levels 0..NLevels()-1. Refinement keeps the
// mesh 1-irregular: across any line the neighboring active cells differ by at most one level.
type Triangulation struct {
	geo            GeometryInfo
	vertices       []Point
	vertexUsed     []bool
	vertexBoundary []bool
	levels         []*level
	listeners      []func()
	nActive        int
}

func newTriangulation(dim int) *Triangulation {
	return &Triangulation{
		geo:    Geometry(dim),
		levels: []*level{{}},
	}
}

// NewHyperCube builds [left,right]^dim subdivided into subdivisions^dim coarse cells
func NewHyperCube(dim, subdivisions int, left, right float64) (t *Triangulation, err error) {
	if dim < 1 || dim > 2 {
		err = fmt.Errorf("hyper cube is only available in 1D and 2D, have dim = %d", dim)
		return
	}
	if subdivisions < 1 || right <= left {
		err = fmt.Errorf("invalid hyper cube, subdivisions = %d, interval = [%v,%v]", subdivisions, left, right)
		return
	}
	t = newTriangulation(dim)
	var (
		n  = subdivisions
		h  = (right - left) / float64(n)
		l0 = t.levels[0]
	)
	switch dim {
	case 1:
		for i := 0; i <= n; i++ {
			t.addVertex(Point{left + float64(i)*h, 0}, i == 0 || i == n)
		}
		for i := 0; i < n; i++ {
			l0.cells = append(l0.cells, newCell([]int{i, i + 1}, nil, -1, 0))
		}
	case 2:
		vid := func(i, j int) int { return j*(n+1) + i }
		for j := 0; j <= n; j++ {
			for i := 0; i <= n; i++ {
				t.addVertex(Point{left + float64(i)*h, left + float64(j)*h},
					i == 0 || j == 0 || i == n || j == n)
			}
		}
		var (
			em       = types.NewEdgeMap()
			lineUses []int
		)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				verts := []int{vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)}
				lines := make([]int, 4)
				for f, lv := range QuadLineVertices {
					lverts := [2]int{verts[lv[0]], verts[lv[1]]}
					id, existed := em.Lookup(lverts)
					if !existed {
						l0.lines = append(l0.lines, newLine(lverts, -1, false))
						lineUses = append(lineUses, 0)
					}
					lineUses[id]++
					lines[f] = id
				}
				l0.cells = append(l0.cells, newCell(verts, lines, -1, 0))
			}
		}
		for id, uses := range lineUses {
			l0.lines[id].Boundary = uses == 1
		}
	}
	t.rebuild()
	return
}

func newCell(verts, lines []int, parent, subdomain int) Cell {
	return Cell{
		Vertices:   verts,
		Lines:      lines,
		FirstChild: -1,
		Parent:     parent,
		Used:       true,
		Subdomain:  subdomain,
		center:     -1,
		inner:      -1,
	}
}

func newLine(verts [2]int, parent int, boundary bool) Line {
	return Line{
		Vertices:   verts,
		FirstChild: -1,
		Parent:     parent,
		Boundary:   boundary,
	}
}

func (t *Triangulation) addVertex(p Point, boundary bool) (id int) {
	id = len(t.vertices)
	t.vertices = append(t.vertices, p)
	t.vertexUsed = append(t.vertexUsed, false)
	t.vertexBoundary = append(t.vertexBoundary, boundary)
	return
}

func (t *Triangulation) Dim() int               { return t.geo.Dim }
func (t *Triangulation) Geometry() GeometryInfo { return t.geo }
func (t *Triangulation) NLevels() int           { return len(t.levels) }
func (t *Triangulation) NVertices() int         { return len(t.vertices) }
func (t *Triangulation) NActiveCells() int      { return t.nActive }

func (t *Triangulation) NCells(level int) int {
	t.checkLevel(level)
	return len(t.levels[level].cells)
}

func (t *Triangulation) NLines(level int) int {
	t.checkLevel(level)
	return len(t.levels[level].lines)
}

func (t *Triangulation) checkLevel(level int) {
	if level < 0 || level >= len(t.levels) {
		panic(fmt.Errorf("level %d does not exist, have %d levels", level, len(t.levels)))
	}
}

// Cell returns the stored cell, which callers must treat as read only
func (t *Triangulation) Cell(level, index int) *Cell {
	t.checkLevel(level)
	cells := t.levels[level].cells
	if index < 0 || index >= len(cells) {
		panic(fmt.Errorf("cell %d does not exist on level %d, have %d cells", index, level, len(cells)))
	}
	return &cells[index]
}

func (t *Triangulation) Line(level, index int) *Line {
	t.checkLevel(level)
	lines := t.levels[level].lines
	if index < 0 || index >= len(lines) {
		panic(fmt.Errorf("line %d does not exist on level %d, have %d lines", index, level, len(lines)))
	}
	return &lines[index]
}

// LineHasChildren reports whether the line is refined into children that are still in use
func (t *Triangulation) LineHasChildren(level, index int) bool {
	ln := t.Line(level, index)
	if ln.FirstChild < 0 || level+1 >= len(t.levels) {
		return false
	}
	return t.levels[level+1].lines[ln.FirstChild].Used
}

func (t *Triangulation) Vertex(i int) Point           { return t.vertices[i] }
func (t *Triangulation) VertexUsed(i int) bool        { return t.vertexUsed[i] }
func (t *Triangulation) VertexAtBoundary(i int) bool  { return t.vertexBoundary[i] }
func (t *Triangulation) CellActive(level, i int) bool { return t.Cell(level, i).Active() }

func (t *Triangulation) CellAtBoundary(level, index int) bool {
	c := t.Cell(level, index)
	if t.geo.Dim == 1 {
		return t.vertexBoundary[c.Vertices[0]] || t.vertexBoundary[c.Vertices[1]]
	}
	for _, L := range c.Lines {
		if t.levels[level].lines[L].Boundary {
			return true
		}
	}
	return false
}

// FaceAtBoundary reports whether face f (a vertex in 1D, a line in 2D) of the cell lies on the domain boundary
func (t *Triangulation) FaceAtBoundary(level, index, face int) bool {
	c := t.Cell(level, index)
	if t.geo.Dim == 1 {
		return t.vertexBoundary[c.Vertices[face]]
	}
	return t.levels[level].lines[c.Lines[face]].Boundary
}

// ActiveCells lists active cells ordered by level, then by index within the level
func (t *Triangulation) ActiveCells() (cells []CellRef) {
	cells = make([]CellRef, 0, t.nActive)
	for l, lev := range t.levels {
		for i := range lev.cells {
			if lev.cells[i].Active() {
				cells = append(cells, CellRef{l, i})
			}
		}
	}
	return
}

func (t *Triangulation) SetSubdomainID(level, index, subdomain int) {
	if subdomain < 0 {
		panic(fmt.Errorf("invalid subdomain id %d", subdomain))
	}
	t.Cell(level, index).Subdomain = subdomain
}

// NSubdomains is one more than the largest subdomain id of any active cell
func (t *Triangulation) NSubdomains() (n int) {
	for _, lev := range t.levels {
		for i := range lev.cells {
			if c := &lev.cells[i]; c.Active() && c.Subdomain+1 > n {
				n = c.Subdomain + 1
			}
		}
	}
	return
}

// Neighbor returns the cell across face f on the same level, or the coarser cell if the neighbor is less refined
func (t *Triangulation) Neighbor(level, index, face int) (CellRef, bool) {
	var (
		c   = t.Cell(level, index)
		lev = t.levels[level]
	)
	if face < 0 || face >= t.geo.FacesPerCell {
		panic(fmt.Errorf("face %d out of range [0,%d)", face, t.geo.FacesPerCell))
	}
	if t.geo.Dim == 1 {
		v := c.Vertices[face]
		for _, k := range lev.vertexCells[v] {
			if k != index && lev.cells[k].Vertices[1-face] == v {
				return CellRef{level, k}, true
			}
		}
		if level > 0 && t.levels[level-1].cells[c.Parent].Vertices[face] == v {
			return t.Neighbor(level-1, c.Parent, face)
		}
		return InvalidCell, false
	}
	L := c.Lines[face]
	for _, k := range lev.lineCells[L] {
		if k != index {
			return CellRef{level, k}, true
		}
	}
	if P := lev.lines[L].Parent; P >= 0 && level > 0 {
		for _, k := range t.levels[level-1].lineCells[P] {
			if k != c.Parent {
				return CellRef{level - 1, k}, true
			}
		}
	}
	return InvalidCell, false
}

// MapToCell maps reference coordinates to the cell with the bilinear (linear in 1D) vertex map
func (t *Triangulation) MapToCell(level, index int, unit Point) (p Point) {
	c := t.Cell(level, index)
	switch t.geo.Dim {
	case 1:
		x0, x1 := t.vertices[c.Vertices[0]][0], t.vertices[c.Vertices[1]][0]
		p[0] = x0 + unit[0]*(x1-x0)
	case 2:
		var (
			u, v = unit[0], unit[1]
			w    = [4]float64{(1 - u) * (1 - v), u * (1 - v), u * v, (1 - u) * v}
		)
		for k, vid := range c.Vertices {
			p[0] += w[k] * t.vertices[vid][0]
			p[1] += w[k] * t.vertices[vid][1]
		}
	}
	return
}

// Subscribe registers fn to be called after every refinement or coarsening
func (t *Triangulation) Subscribe(fn func()) {
	t.listeners = append(t.listeners, fn)
}

func (t *Triangulation) notify() {
	for _, fn := range t.listeners {
		fn()
	}
}

// rebuild recomputes used flags of lines and vertices and the adjacency tables from the used cells
func (t *Triangulation) rebuild() {
	for i := range t.vertexUsed {
		t.vertexUsed[i] = false
	}
	t.nActive = 0
	for _, lev := range t.levels {
		for i := range lev.lines {
			lev.lines[i].Used = false
		}
		lev.lineCells = make([][]int, len(lev.lines))
		lev.vertexCells = make(map[int][]int)
		for i := range lev.cells {
			c := &lev.cells[i]
			if !c.Used {
				continue
			}
			if c.Active() {
				t.nActive++
			}
			for _, v := range c.Vertices {
				t.vertexUsed[v] = true
				lev.vertexCells[v] = append(lev.vertexCells[v], i)
			}
			for _, L := range c.Lines {
				lev.lines[L].Used = true
				lev.lineCells[L] = append(lev.lineCells[L], i)
			}
		}
	}
}
