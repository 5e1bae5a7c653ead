package constraints

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/notargets/godofs/indexset"
)

var (
	ErrSelfReference  = errors.New("constraint line references itself")
	ErrCycle          = errors.New("constraints form a cycle")
	ErrNotOpen        = errors.New("constraints are closed")
	ErrNotClosed      = errors.New("constraints are not closed")
	ErrNoLine         = errors.New("constraint line does not exist")
	ErrGhostedVector  = errors.New("can not condense into a vector with ghost elements")
	ErrSourceNotLocal = errors.New("constraint source is not readable on this rank")
)

type State uint8

const (
	Empty State = iota
	Open
	Closed
)

func (s State) String() string {
	return [...]string{"Empty", "Open", "Closed"}[s]
}

type Entry struct {
	Column int
	Value  float64
}

// Line constrains DOF Index: x[Index] = sum(Value * x[Column]) + Inhomogeneity
type Line struct {
	Index         int
	Entries       []Entry
	Inhomogeneity float64
}

func (l Line) clone() Line {
	l.Entries = append([]Entry(nil), l.Entries...)
	return l
}

/*
AffineConstraints collects constraint lines, then Close resolves chains of constraints so that every line
depends only on unconstrained DOFs. Lines for DOFs outside the local set are ignored, which lets each rank
build only the constraints it can apply.
*/
type AffineConstraints struct {
	local  *indexset.IndexSet
	lines  []Line
	lookup map[int]int // DOF index to position in lines
	closed bool
}

// New returns an empty constraint set, localLines == nil stores every line
func New(localLines *indexset.IndexSet) *AffineConstraints {
	return &AffineConstraints{
		local:  localLines,
		lookup: make(map[int]int),
	}
}

func (ac *AffineConstraints) State() State {
	switch {
	case ac.closed:
		return Closed
	case len(ac.lines) == 0:
		return Empty
	}
	return Open
}

func (ac *AffineConstraints) IsClosed() bool { return ac.closed }

func (ac *AffineConstraints) isLocal(i int) bool {
	return ac.local == nil || ac.local.IsElement(i)
}

func (ac *AffineConstraints) AddLine(i int) {
	if ac.closed {
		panic(fmt.Errorf("%w: can not add line %d", ErrNotOpen, i))
	}
	if i < 0 {
		panic(fmt.Errorf("invalid constraint line %d", i))
	}
	if !ac.isLocal(i) {
		return
	}
	if _, ok := ac.lookup[i]; ok {
		return
	}
	ac.lookup[i] = len(ac.lines)
	ac.lines = append(ac.lines, Line{Index: i})
}

func (ac *AffineConstraints) line(i int) (l *Line, err error) {
	if ac.closed {
		err = fmt.Errorf("%w: can not modify line %d", ErrNotOpen, i)
		return
	}
	pos, ok := ac.lookup[i]
	if !ok {
		if ac.isLocal(i) {
			err = fmt.Errorf("%w: %d", ErrNoLine, i)
		}
		return
	}
	l = &ac.lines[pos]
	return
}

// AddEntry adds value to the coefficient of column in line, repeated columns accumulate
func (ac *AffineConstraints) AddEntry(line, column int, value float64) (err error) {
	if line == column {
		return fmt.Errorf("%w: line %d", ErrSelfReference, line)
	}
	var l *Line
	if l, err = ac.line(line); err != nil || l == nil {
		return
	}
	for k := range l.Entries {
		if l.Entries[k].Column == column {
			l.Entries[k].Value += value
			return
		}
	}
	l.Entries = append(l.Entries, Entry{column, value})
	return
}

func (ac *AffineConstraints) AddEntries(line int, entries []Entry) (err error) {
	for _, e := range entries {
		if err = ac.AddEntry(line, e.Column, e.Value); err != nil {
			return
		}
	}
	return
}

func (ac *AffineConstraints) SetInhomogeneity(line int, value float64) (err error) {
	var l *Line
	if l, err = ac.line(line); err != nil || l == nil {
		return
	}
	l.Inhomogeneity = value
	return
}

func (ac *AffineConstraints) IsConstrained(i int) bool {
	_, ok := ac.lookup[i]
	return ok
}

func (ac *AffineConstraints) NConstraints() int { return len(ac.lines) }

// Lines returns copies of all lines sorted by index once closed, in insertion order before
func (ac *AffineConstraints) Lines() (lines []Line) {
	lines = make([]Line, len(ac.lines))
	for k, l := range ac.lines {
		lines[k] = l.clone()
	}
	return
}

// ResolvedLine returns the closed line constraining i
func (ac *AffineConstraints) ResolvedLine(i int) (l Line, ok bool) {
	if !ac.closed {
		panic(fmt.Errorf("%w: ResolvedLine(%d)", ErrNotClosed, i))
	}
	var pos int
	if pos, ok = ac.lookup[i]; ok {
		l = ac.lines[pos].clone()
	}
	return
}

func (ac *AffineConstraints) Clear() {
	ac.lines = nil
	ac.lookup = make(map[int]int)
	ac.closed = false
}

/*
Close orders the lines so that every line comes after the lines it references, then substitutes referenced
constrained DOFs by their own, already resolved, entries. Merged entries are sorted by column and zero
coefficients are dropped. A cycle among the lines is an error and leaves the constraints open.
*/
func (ac *AffineConstraints) Close() (err error) {
	if ac.closed {
		return
	}
	g := simple.NewDirectedGraph()
	for _, l := range ac.lines {
		g.AddNode(simple.Node(l.Index))
	}
	for _, l := range ac.lines {
		for _, e := range l.Entries {
			if ac.IsConstrained(e.Column) {
				// An edge from a line to a line it depends on
				g.SetEdge(g.NewEdge(simple.Node(l.Index), simple.Node(e.Column)))
			}
		}
	}
	var order []graph.Node
	if order, err = topo.SortStabilized(g, sortByID); err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			return fmt.Errorf("%w: %v", ErrCycle, cycleMembers(cycles))
		}
		return
	}
	resolved := make(map[int]Line, len(ac.lines))
	for k := len(order) - 1; k >= 0; k-- {
		var (
			l      = ac.lines[ac.lookup[int(order[k].ID())]]
			coef   = make(map[int]float64)
			inhomo = l.Inhomogeneity
		)
		for _, e := range l.Entries {
			if dep, ok := resolved[e.Column]; ok {
				for _, de := range dep.Entries {
					coef[de.Column] += e.Value * de.Value
				}
				inhomo += e.Value * dep.Inhomogeneity
				continue
			}
			coef[e.Column] += e.Value
		}
		res := Line{Index: l.Index, Inhomogeneity: inhomo}
		for col, v := range coef {
			if v != 0 {
				res.Entries = append(res.Entries, Entry{col, v})
			}
		}
		sort.Slice(res.Entries, func(a, b int) bool { return res.Entries[a].Column < res.Entries[b].Column })
		resolved[l.Index] = res
	}
	ac.lines = ac.lines[:0]
	for _, l := range resolved {
		ac.lines = append(ac.lines, l)
	}
	sort.Slice(ac.lines, func(a, b int) bool { return ac.lines[a].Index < ac.lines[b].Index })
	for k, l := range ac.lines {
		ac.lookup[l.Index] = k
	}
	ac.closed = true
	return
}

func sortByID(nodes []graph.Node) {
	sort.Slice(nodes, func(a, b int) bool { return nodes[a].ID() < nodes[b].ID() })
}

func cycleMembers(cycles topo.Unorderable) (members [][]int) {
	for _, comp := range cycles {
		ids := make([]int, len(comp))
		for k, n := range comp {
			ids[k] = int(n.ID())
		}
		sort.Ints(ids)
		members = append(members, ids)
	}
	return
}

// Print writes one "line column: value" row per entry and "line: inhomogeneity" rows for nonzero offsets
func (ac *AffineConstraints) Print(w io.Writer) {
	for _, l := range ac.lines {
		for _, e := range l.Entries {
			fmt.Fprintf(w, "    %d %d:  %v\n", l.Index, e.Column, e.Value)
		}
		if len(l.Entries) == 0 || l.Inhomogeneity != 0 {
			fmt.Fprintf(w, "    %d: %v\n", l.Index, l.Inhomogeneity)
		}
	}
}
