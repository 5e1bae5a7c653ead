package distributed

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/indexset"
)

/*
Vector is one rank's part of a global vector. It stores the owned entries and, when ghosted, read copies of the
relevant entries owned elsewhere. Indices are global. A ghosted vector is a read view for gathering cell values
and a scratch space for assembly contributions that CompressAdd sends to the owners.
*/
type Vector struct {
	rank    int
	size    int
	owned   *indexset.IndexSet
	ghosts  *indexset.IndexSet
	ghosted bool
	values  []float64 // owned entries then ghost entries, in index order
}

func NewVector(l *Layout, rank int) *Vector {
	return newVector(l, rank, indexset.New(l.NDofs), false)
}

func NewGhostedVector(l *Layout, rank int) *Vector {
	return newVector(l, rank, l.Ghosts(rank), true)
}

func newVector(l *Layout, rank int, ghosts *indexset.IndexSet, ghosted bool) *Vector {
	owned := l.Owned[rank]
	return &Vector{
		rank:    rank,
		size:    l.NDofs,
		owned:   owned,
		ghosts:  ghosts,
		ghosted: ghosted,
		values:  make([]float64, owned.NElements()+ghosts.NElements()),
	}
}

func (v *Vector) Rank() int                 { return v.rank }
func (v *Vector) Len() int                  { return v.size }
func (v *Vector) Dims() (r, c int)          { return v.size, 1 }
func (v *Vector) At(i, j int) float64       { return v.AtVec(i) }
func (v *Vector) T() mat.Matrix             { return mat.Transpose{Matrix: v} }
func (v *Vector) HasGhostElements() bool    { return v.ghosted }
func (v *Vector) InLocalRange(i int) bool   { return v.owned.IsElement(i) }
func (v *Vector) IsReadable(i int) bool     { return v.position(i) >= 0 }
func (v *Vector) OwnedValues() []float64    { return v.values[:v.owned.NElements()] }
func (v *Vector) GhostValues() []float64    { return v.values[v.owned.NElements():] }
func (v *Vector) Owned() *indexset.IndexSet { return v.owned }

func (v *Vector) position(i int) int {
	if k := v.owned.IndexWithinSet(i); k >= 0 {
		return k
	}
	if k := v.ghosts.IndexWithinSet(i); k >= 0 {
		return v.owned.NElements() + k
	}
	return -1
}

func (v *Vector) mustPosition(i int) int {
	k := v.position(i)
	if k < 0 {
		panic(fmt.Errorf("%w: entry %d on rank %d", ErrNotLocal, i, v.rank))
	}
	return k
}

func (v *Vector) AtVec(i int) float64 {
	return v.values[v.mustPosition(i)]
}

// SetVec writes an owned entry or, on a ghosted vector, a ghost entry
func (v *Vector) SetVec(i int, val float64) {
	v.values[v.mustPosition(i)] = val
}

func (v *Vector) AddAt(i int, val float64) {
	v.values[v.mustPosition(i)] += val
}

func (v *Vector) Zero() {
	for i := range v.values {
		v.values[i] = 0
	}
}

// ZeroGhosts clears the ghost entries, leaving the owned entries
func (v *Vector) ZeroGhosts() {
	g := v.GhostValues()
	for i := range g {
		g[i] = 0
	}
}

// CopyOwned copies the owned entries of src, which must have the same owned set
func (v *Vector) CopyOwned(src *Vector) {
	if !v.owned.Equal(src.owned) {
		panic(fmt.Errorf("%w: owned sets of rank %d and rank %d differ", ErrLayoutMismatch, v.rank, src.rank))
	}
	copy(v.OwnedValues(), src.OwnedValues())
}
