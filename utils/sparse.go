package utils

import (
	"errors"
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

var ErrNotInPattern = errors.New("entry not in sparsity pattern")

// SparsityPattern collects the (row, column) couplings of a sparse matrix before storage is allocated
type SparsityPattern struct {
	M *sparse.DOK
}

func NewSparsityPattern(nr, nc int) *SparsityPattern {
	return &SparsityPattern{sparse.NewDOK(nr, nc)}
}

func (sp *SparsityPattern) Dims() (r, c int) { return sp.M.Dims() }

func (sp *SparsityPattern) Add(i, j int) {
	if nr, nc := sp.Dims(); i < 0 || i >= nr || j < 0 || j >= nc {
		panic(fmt.Errorf("sparsity entry (%d,%d) outside of %dx%d pattern", i, j, nr, nc))
	}
	sp.M.Set(i, j, 1)
}

// AddEntries couples every index in I with every other index in I, including itself
func (sp *SparsityPattern) AddEntries(I Index) {
	for _, i := range I {
		for _, j := range I {
			sp.Add(i, j)
		}
	}
}

func (sp *SparsityPattern) Exists(i, j int) bool { return sp.M.At(i, j) != 0 }
func (sp *SparsityPattern) NNZ() int             { return sp.M.NNZ() }

// Compress returns the pattern in CSR row pointer / column index form, columns sorted within each row
func (sp *SparsityPattern) Compress() (indptr, ind []int) {
	raw := sp.M.ToCSR().RawMatrix()
	indptr, ind = raw.Indptr, raw.Ind
	for i := 0; i+1 < len(indptr); i++ {
		sort.Ints(ind[indptr[i]:indptr[i+1]])
	}
	return
}

// CSR is a compressed sparse row matrix with a fixed sparsity pattern. Writes to entries outside the pattern panic.
type CSR struct {
	M        *sparse.CSR
	readOnly bool
	name     string
}

func NewCSR(sp *SparsityPattern) (R CSR) {
	var (
		nr, nc      = sp.Dims()
		indptr, ind = sp.Compress()
	)
	R = CSR{
		sparse.NewCSR(nr, nc, indptr, ind, make([]float64, len(ind))),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)              { return m.M.Dims() }
func (m CSR) At(i, j int) float64           { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix                 { return mat.Transpose{Matrix: m} }
func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }
func (m CSR) Data() []float64 {
	return m.RawMatrix().Data
}
func (m CSR) NNZ() int { return len(m.RawMatrix().Ind) }

func (m CSR) find(i, j int) (pos int, ok bool) {
	var (
		raw    = m.RawMatrix()
		nr, _  = m.Dims()
		offset int
		cols   []int
	)
	if i < 0 || i >= nr {
		return
	}
	offset = raw.Indptr[i]
	cols = raw.Ind[offset:raw.Indptr[i+1]]
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return offset + k, true
	}
	return
}

func (m CSR) InPattern(i, j int) bool {
	_, ok := m.find(i, j)
	return ok
}

// Add accumulates val into entry (i,j), which must be part of the pattern
func (m CSR) Add(i, j int, val float64) {
	m.checkWritable()
	pos, ok := m.find(i, j)
	if !ok {
		panic(fmt.Errorf("%w: (%d,%d) in matrix \"%v\"", ErrNotInPattern, i, j, m.name))
	}
	m.RawMatrix().Data[pos] += val
}

func (m CSR) Set(i, j int, val float64) {
	m.checkWritable()
	pos, ok := m.find(i, j)
	if !ok {
		panic(fmt.Errorf("%w: (%d,%d) in matrix \"%v\"", ErrNotInPattern, i, j, m.name))
	}
	m.RawMatrix().Data[pos] = val
}

// DoRowNonZero calls fn for every stored entry of row i, in column order
func (m CSR) DoRowNonZero(i int, fn func(j int, v float64)) {
	raw := m.RawMatrix()
	for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
		fn(raw.Ind[k], raw.Data[k])
	}
}

func (m CSR) Zero() {
	m.checkWritable()
	data := m.Data()
	for i := range data {
		data[i] = 0
	}
}

func (m CSR) SetReadOnly(name ...string) CSR {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return m
}

func (m CSR) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}
