// Package pathfinding runs breadth-first, uniform-cost and A* searches over a
// grid.Grid with one shared best-first loop.
package pathfinding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"

	"gridroute/internal/grid"
	"gridroute/internal/pqueue"
)

var (
	// ErrInvariant reports internal bookkeeping that went wrong mid-search.
	ErrInvariant = errors.New("search invariant violated")
	// ErrParentCycle reports a parent chain that does not lead back to the start.
	ErrParentCycle = errors.New("parent chain does not terminate")
)

// node is the per-search state of one cell.
type node struct {
	cell    *grid.Cell
	g       int
	h       int
	parent  *node
	slot    int
	closed  bool
	touched bool
}

func (n *node) f() int { return n.g + n.h }

func (n *node) HeapIndex() int     { return n.slot }
func (n *node) SetHeapIndex(i int) { n.slot = i }

// lowerCost orders by f, then by h.
func lowerCost(a, b *node) bool {
	if fa, fb := a.f(), b.f(); fa != fb {
		return fa < fb
	}
	return a.h < b.h
}

// Request is a world-space search request.
type Request struct {
	Start     orb.Point
	End       orb.Point
	Algorithm Algorithm
}

// CostBounds is the range of f values seen while a search ran.
type CostBounds struct {
	MinF int
	MaxF int
}

func (b *CostBounds) observe(f int) {
	if f < b.MinF {
		b.MinF = f
	}
	if f > b.MaxF {
		b.MaxF = f
	}
}

func emptyBounds() CostBounds {
	return CostBounds{MinF: math.MaxInt, MaxF: math.MinInt}
}

// Result describes a finished search. Batches holds, per non-goal iteration
// and in expansion order, the neighbours whose cost was set or improved.
type Result struct {
	Path      []*grid.Cell
	Success   bool
	Batches   [][]*grid.Cell
	Cost      int
	Expanded  int
	Truncated bool
	Bounds    CostBounds
}

// Waypoints returns the world positions of the path cells.
func (r Result) Waypoints() []orb.Point {
	points := make([]orb.Point, len(r.Path))
	for i, c := range r.Path {
		points[i] = c.World
	}
	return points
}

// Visited counts the distinct cells reached: the start plus every cell named
// in a batch. The start is closed before its neighbours are relaxed, so it
// never appears in a batch itself.
func (r Result) Visited() int {
	if r.Expanded == 0 {
		return 0
	}
	seen := make(map[int]struct{})
	for _, batch := range r.Batches {
		for _, c := range batch {
			seen[c.Index] = struct{}{}
		}
	}
	return len(seen) + 1
}

// Option configures an Engine.
type Option func(*Engine)

// WithPriority selects the terrain weight used by weighted step costs.
func WithPriority(p grid.Priority) Option {
	return func(e *Engine) { e.priority = p }
}

// WithMaxExpansions stops a search after n expansions. Zero means no limit.
func WithMaxExpansions(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxExpansions = n
		}
	}
}

// WithProfiler reports every search of the engine to profiler.
func WithProfiler(profiler SearchProfiler) Option {
	return func(e *Engine) { e.profiler = profiler }
}

// Engine owns the mutable state of one search at a time. The grid may be
// shared by many engines; an Engine itself is not safe for concurrent use.
type Engine struct {
	grid          *grid.Grid
	nodes         []node
	dirty         []int
	open          *pqueue.Queue[*node]
	scratch       []*grid.Cell
	priority      grid.Priority
	maxExpansions int
	profiler      SearchProfiler
	generation    uint64
}

// NewEngine allocates search state sized to g.
func NewEngine(g *grid.Grid, opts ...Option) *Engine {
	open, err := pqueue.New[*node](g.Len(), lowerCost)
	if err != nil {
		// a built grid always has at least one cell
		panic(fmt.Sprintf("pathfinding: %v", err))
	}
	e := &Engine{
		grid:    g,
		nodes:   make([]node, g.Len()),
		open:    open,
		scratch: make([]*grid.Cell, 0, 8),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Grid() *grid.Grid {
	return e.grid
}

// reset clears the state left behind by the previous search.
func (e *Engine) reset() {
	e.open.Clear()
	for _, idx := range e.dirty {
		e.nodes[idx] = node{}
	}
	e.dirty = e.dirty[:0]
	e.generation++
}

func (e *Engine) touch(c *grid.Cell) *node {
	n := &e.nodes[c.Index]
	if !n.touched {
		n.touched = true
		n.cell = c
		e.dirty = append(e.dirty, c.Index)
	}
	return n
}

// Search resolves the request's world points to cells and runs the search.
func (e *Engine) Search(ctx context.Context, req Request) (Result, error) {
	return e.SearchCells(ctx, e.grid.CellAt(req.Start), e.grid.CellAt(req.End), req.Algorithm)
}

// SearchCells runs alg from start to goal to completion. Unreachable goals are
// reported through Result.Success, not as errors.
func (e *Engine) SearchCells(ctx context.Context, start, goal *grid.Cell, alg Algorithm) (Result, error) {
	if !alg.valid() {
		return Result{}, fmt.Errorf("search %s -> %s: unknown algorithm %d", start.Coord, goal.Coord, int(alg))
	}
	began := time.Now()
	stepper := e.Stepper(start, goal, alg)
	if stepper.profiler == nil {
		stepper.profiler = profilerFromContext(ctx)
	}

	var batches [][]*grid.Cell
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		step, err := stepper.Step()
		if err != nil {
			return Result{}, err
		}
		if step.Done {
			break
		}
		batches = append(batches, step.Batch)
	}

	result, err := stepper.Result()
	if err != nil {
		return Result{}, err
	}
	result.Batches = batches
	if stepper.profiler != nil {
		stepper.profiler.RecordSearch(time.Since(began), result.Success)
	}
	return result, nil
}

// retrace walks parent links from goal back to the start.
func (e *Engine) retrace(goal *node) ([]*grid.Cell, error) {
	var reversed []*grid.Cell
	current := goal
	for hops := 0; ; hops++ {
		if hops > e.grid.Len() {
			return nil, fmt.Errorf("%w: more than %d hops back from %s", ErrParentCycle, e.grid.Len(), goal.cell.Coord)
		}
		if current == nil {
			return nil, fmt.Errorf("%w: %s has no parent", ErrParentCycle, reversed[len(reversed)-1].Coord)
		}
		reversed = append(reversed, current.cell)
		if current.parent == current {
			break
		}
		current = current.parent
	}
	path := make([]*grid.Cell, len(reversed))
	for i, c := range reversed {
		path[len(reversed)-1-i] = c
	}
	return path, nil
}
