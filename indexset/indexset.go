package indexset

import (
	"fmt"
	"sort"
	"strings"
)

// Range is the half open interval [Begin, End)
type Range struct {
	Begin, End int
}

func (r Range) Len() int { return r.End - r.Begin }

// IndexSet is a subset of [0, Size) stored as sorted, disjoint and non-touching ranges
type IndexSet struct {
	size    int
	ranges  []Range
	offsets []int // number of elements before each range
}

func New(size int) *IndexSet {
	if size < 0 {
		panic(fmt.Errorf("index set size must be >= 0, have %d", size))
	}
	return &IndexSet{size: size}
}

// NewRange returns the set {begin, ..., end-1} within [0, size)
func NewRange(size, begin, end int) (is *IndexSet) {
	is = New(size)
	is.AddRange(begin, end)
	return
}

// Complete returns [0, size)
func Complete(size int) *IndexSet { return NewRange(size, 0, size) }

func (is *IndexSet) Size() int { return is.size }

func (is *IndexSet) Clone() *IndexSet {
	return &IndexSet{
		size:    is.size,
		ranges:  append([]Range(nil), is.ranges...),
		offsets: append([]int(nil), is.offsets...),
	}
}

func (is *IndexSet) setRanges(ranges []Range) {
	is.ranges, is.offsets = ranges, nil
	var n int
	for _, r := range ranges {
		is.offsets = append(is.offsets, n)
		n += r.Len()
	}
}

func (is *IndexSet) checkIndex(i int) {
	if i < 0 || i >= is.size {
		panic(fmt.Errorf("index %d out of range [0,%d)", i, is.size))
	}
}

func (is *IndexSet) checkSize(other *IndexSet) {
	if other.size != is.size {
		panic(fmt.Errorf("index set sizes differ: %d and %d", is.size, other.size))
	}
}

func (is *IndexSet) AddIndex(i int) {
	is.checkIndex(i)
	is.AddRange(i, i+1)
}

func (is *IndexSet) AddRange(begin, end int) {
	if begin < 0 || end > is.size || begin > end {
		panic(fmt.Errorf("range [%d,%d) is not within [0,%d)", begin, end, is.size))
	}
	if begin == end {
		return
	}
	var (
		r = is.ranges
		// Ranges [lo,hi) overlap or touch the new one
		lo = sort.Search(len(r), func(k int) bool { return r[k].End >= begin })
		hi = sort.Search(len(r), func(k int) bool { return r[k].Begin > end })
	)
	if lo < hi {
		begin = min(begin, r[lo].Begin)
		end = max(end, r[hi-1].End)
	}
	merged := make([]Range, 0, len(r)-(hi-lo)+1)
	merged = append(merged, r[:lo]...)
	merged = append(merged, Range{begin, end})
	merged = append(merged, r[hi:]...)
	is.setRanges(merged)
}

// AddIndices adds an unsorted list of indices, duplicates allowed
func (is *IndexSet) AddIndices(indices []int) {
	if len(indices) == 0 {
		return
	}
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	is.checkIndex(sorted[0])
	is.checkIndex(sorted[len(sorted)-1])
	begin, end := sorted[0], sorted[0]+1
	for _, i := range sorted[1:] {
		if i <= end {
			end = max(end, i+1)
			continue
		}
		is.AddRange(begin, end)
		begin, end = i, i+1
	}
	is.AddRange(begin, end)
}

func (is *IndexSet) AddSet(other *IndexSet) {
	is.checkSize(other)
	for _, r := range other.ranges {
		is.AddRange(r.Begin, r.End)
	}
}

func (is *IndexSet) IsElement(i int) bool {
	if i < 0 || i >= is.size {
		return false
	}
	k := sort.Search(len(is.ranges), func(k int) bool { return is.ranges[k].End > i })
	return k < len(is.ranges) && is.ranges[k].Begin <= i
}

func (is *IndexSet) NElements() (n int) {
	for _, r := range is.ranges {
		n += r.Len()
	}
	return
}

func (is *IndexSet) IsEmpty() bool { return len(is.ranges) == 0 }

// IsContiguous reports whether the set is a single range, the empty set counts as contiguous
func (is *IndexSet) IsContiguous() bool { return len(is.ranges) <= 1 }

// SubtractSet removes all elements of other from the set
func (is *IndexSet) SubtractSet(other *IndexSet) {
	is.checkSize(other)
	var (
		o   = other.ranges
		out []Range
		j   int
	)
	for _, a := range is.ranges {
		b, e := a.Begin, a.End
		for j < len(o) && o[j].End <= b {
			j++
		}
		for k := j; k < len(o) && o[k].Begin < e && b < e; k++ {
			if o[k].Begin > b {
				out = append(out, Range{b, o[k].Begin})
			}
			b = max(b, o[k].End)
		}
		if b < e {
			out = append(out, Range{b, e})
		}
	}
	is.setRanges(out)
}

func (is *IndexSet) Intersect(other *IndexSet) (res *IndexSet) {
	is.checkSize(other)
	res = New(is.size)
	var (
		a, b = is.ranges, other.ranges
		i, j int
		out  []Range
	)
	for i < len(a) && j < len(b) {
		lo, hi := max(a[i].Begin, b[j].Begin), min(a[i].End, b[j].End)
		if lo < hi {
			out = append(out, Range{lo, hi})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	res.setRanges(out)
	return
}

func (is *IndexSet) IsSubsetOf(other *IndexSet) bool {
	return is.Intersect(other).NElements() == is.NElements()
}

func (is *IndexSet) Equal(other *IndexSet) bool {
	if is.size != other.size || len(is.ranges) != len(other.ranges) {
		return false
	}
	for k, r := range is.ranges {
		if other.ranges[k] != r {
			return false
		}
	}
	return true
}

func (is *IndexSet) Ranges() []Range { return append([]Range(nil), is.ranges...) }

func (is *IndexSet) Elements() (el []int) {
	el = make([]int, 0, is.NElements())
	for _, r := range is.ranges {
		for i := r.Begin; i < r.End; i++ {
			el = append(el, i)
		}
	}
	return
}

// NthIndex returns the n-th smallest element
func (is *IndexSet) NthIndex(n int) int {
	if n >= 0 {
		for _, r := range is.ranges {
			if n < r.Len() {
				return r.Begin + n
			}
			n -= r.Len()
		}
	}
	panic(fmt.Errorf("element %d requested from a set of %d elements", n, is.NElements()))
}

// IndexWithinSet is the inverse of NthIndex, -1 when i is not an element
func (is *IndexSet) IndexWithinSet(i int) int {
	k := sort.Search(len(is.ranges), func(k int) bool { return is.ranges[k].End > i })
	if k == len(is.ranges) || is.ranges[k].Begin > i {
		return -1
	}
	return is.offsets[k] + i - is.ranges[k].Begin
}

func (is *IndexSet) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for k, r := range is.ranges {
		if k != 0 {
			sb.WriteString(", ")
		}
		if r.Len() == 1 {
			fmt.Fprintf(&sb, "%d", r.Begin)
		} else {
			fmt.Fprintf(&sb, "[%d,%d]", r.Begin, r.End-1)
		}
	}
	sb.WriteString("}")
	return sb.String()
}
