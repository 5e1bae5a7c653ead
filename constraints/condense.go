package constraints

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/utils"
)

// Vector is the element access Condense needs, satisfied by *mat.VecDense and distributed vectors
type Vector interface {
	Len() int
	AtVec(i int) float64
	SetVec(i int, v float64)
}

// Vectors that only hold part of the index space report which entries they may write and read
type ownedRange interface {
	InLocalRange(i int) bool
}

type readable interface {
	IsReadable(i int) bool
}

type ghosted interface {
	HasGhostElements() bool
}

func writable(v Vector, i int) bool {
	if or, ok := v.(ownedRange); ok {
		return or.InLocalRange(i)
	}
	return i >= 0 && i < v.Len()
}

func canRead(v Vector, i int) bool {
	if r, ok := v.(readable); ok {
		return r.IsReadable(i)
	}
	return i >= 0 && i < v.Len()
}

// Condense sets every constrained entry of v to the value its line prescribes
func (ac *AffineConstraints) Condense(v Vector) error {
	return ac.CondenseFrom(v, v)
}

// Distribute computes constrained solution values from the unconstrained ones
func (ac *AffineConstraints) Distribute(v Vector) error {
	return ac.CondenseFrom(v, v)
}

/*
CondenseFrom sets dst[k] = sum(w * src[j]) + b for every constrained k that dst can write. Sources are read from
src, which may carry ghost entries while dst may not. Everything is validated before dst is modified, so a
failing call leaves dst untouched. Closed lines reference only unconstrained DOFs, so repeating the call changes
nothing.
*/
func (ac *AffineConstraints) CondenseFrom(dst, src Vector) (err error) {
	if !ac.closed {
		return fmt.Errorf("%w: condense", ErrNotClosed)
	}
	if gv, ok := dst.(ghosted); ok && gv.HasGhostElements() {
		return ErrGhostedVector
	}
	targets := make([]int, 0, len(ac.lines))
	for k, l := range ac.lines {
		if !writable(dst, l.Index) {
			continue
		}
		for _, e := range l.Entries {
			if !canRead(src, e.Column) {
				return fmt.Errorf("%w: line %d needs entry %d", ErrSourceNotLocal, l.Index, e.Column)
			}
		}
		targets = append(targets, k)
	}
	for _, k := range targets {
		l := ac.lines[k]
		val := l.Inhomogeneity
		for _, e := range l.Entries {
			val += e.Value * src.AtVec(e.Column)
		}
		dst.SetVec(l.Index, val)
	}
	return
}

func (ac *AffineConstraints) expansion(i int) []Entry {
	if pos, ok := ac.lookup[i]; ok {
		return ac.lines[pos].Entries
	}
	return []Entry{{i, 1}}
}

// CondenseSparsityPattern adds the couplings created by eliminating constrained rows and columns
func (ac *AffineConstraints) CondenseSparsityPattern(sp *utils.SparsityPattern) {
	if !ac.closed {
		panic(fmt.Errorf("%w: condense sparsity pattern", ErrNotClosed))
	}
	var (
		nr, _       = sp.Dims()
		indptr, ind = sp.Compress()
	)
	for i := 0; i < nr; i++ {
		rows := ac.expansion(i)
		for _, j := range ind[indptr[i]:indptr[i+1]] {
			if !ac.IsConstrained(i) && !ac.IsConstrained(j) {
				continue
			}
			for _, a := range rows {
				for _, b := range ac.expansion(j) {
					sp.Add(a.Column, b.Column)
				}
			}
		}
		if ac.IsConstrained(i) {
			sp.Add(i, i)
		}
	}
}

/*
CondenseSystem eliminates the constrained DOFs from A x = rhs by substituting x = C y + b:

	A <- C^T A C,  rhs <- C^T (rhs - A b)

Constrained rows and columns are left empty except for the diagonal, which gets the mean absolute diagonal of
the unconstrained rows, and their rhs entries are zero. A must use a pattern condensed by CondenseSparsityPattern.
*/
func (ac *AffineConstraints) CondenseSystem(A *utils.CSR, rhs *mat.VecDense) (err error) {
	if !ac.closed {
		return fmt.Errorf("%w: condense system", ErrNotClosed)
	}
	nr, nc := A.Dims()
	if nr != nc || rhs.Len() != nr {
		panic(fmt.Errorf("dimension mismatch: matrix is %dx%d, rhs has %d entries", nr, nc, rhs.Len()))
	}
	var (
		condensed = make(map[[2]int]float64)
		newRHS    = make([]float64, nr)
	)
	for i := 0; i < nr; i++ {
		var (
			rows = ac.expansion(i)
			g    = rhs.AtVec(i)
		)
		A.DoRowNonZero(i, func(j int, v float64) {
			if pos, ok := ac.lookup[j]; ok {
				g -= v * ac.lines[pos].Inhomogeneity
			}
			for _, a := range rows {
				for _, b := range ac.expansion(j) {
					condensed[[2]int{a.Column, b.Column}] += a.Value * b.Value * v
				}
			}
		})
		for _, a := range rows {
			newRHS[a.Column] += a.Value * g
		}
	}
	for ij := range condensed {
		if !A.InPattern(ij[0], ij[1]) {
			return fmt.Errorf("%w: condensed entry (%d,%d)", utils.ErrNotInPattern, ij[0], ij[1])
		}
	}
	for _, l := range ac.lines {
		if l.Index < nr && !A.InPattern(l.Index, l.Index) {
			return fmt.Errorf("%w: diagonal of constrained row %d", utils.ErrNotInPattern, l.Index)
		}
	}
	A.Zero()
	var (
		diagSum float64
		nDiag   int
	)
	for ij, v := range condensed {
		A.Set(ij[0], ij[1], v)
		if ij[0] == ij[1] {
			diagSum += math.Abs(v)
			nDiag++
		}
	}
	avgDiag := 1.
	if nDiag != 0 && diagSum != 0 {
		avgDiag = diagSum / float64(nDiag)
	}
	for _, l := range ac.lines {
		if l.Index < nr {
			A.Set(l.Index, l.Index, avgDiag)
			newRHS[l.Index] = 0
		}
	}
	for i, v := range newRHS {
		rhs.SetVec(i, v)
	}
	return
}
