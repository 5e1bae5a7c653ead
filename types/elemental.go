package types

import (
	"fmt"
	"math"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	// This packs two index coordinates into two 32 bit unsigned integers to act as a hash and an indirect access method
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(i1 + i2<<32)
	return
}

func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	var (
		enTmp EdgeKey
	)
	enTmp = ek >> 32
	verts[1] = int(enTmp)
	verts[0] = int(ek - enTmp*(1<<32))
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}

// EdgeMap assigns a dense id to every distinct edge it is shown, in order of first appearance.
type EdgeMap struct {
	ids map[EdgeKey]int
}

func NewEdgeMap() *EdgeMap {
	return &EdgeMap{ids: make(map[EdgeKey]int)}
}

// Lookup returns the id of the edge and whether it was already known. Unknown edges get the next id.
func (em *EdgeMap) Lookup(verts [2]int) (id int, existed bool) {
	key := NewEdgeKey(verts)
	if id, existed = em.ids[key]; existed {
		return
	}
	id = len(em.ids)
	em.ids[key] = id
	return
}

func (em *EdgeMap) Len() int { return len(em.ids) }
