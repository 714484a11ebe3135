package pathfinding

import (
	"fmt"

	"gridroute/internal/grid"
)

// Step is the outcome of one queue pop.
type Step struct {
	Current *grid.Cell   // the popped cell, nil when nothing was popped
	Batch   []*grid.Cell // neighbours whose cost was set or improved
	Done    bool
	Found   bool
	Index   int // zero-based iteration number
}

// Stepper advances a search one iteration at a time so callers can replay
// exploration incrementally. Starting another search on the same Engine
// invalidates it.
type Stepper struct {
	engine     *Engine
	generation uint64
	policy     policy
	profiler   SearchProfiler
	goal       *grid.Cell
	goalNode   *node

	iteration int
	expanded  int
	bounds    CostBounds
	done      bool
	found     bool
	truncated bool
}

// Stepper resets the engine and prepares a search from start to goal.
func (e *Engine) Stepper(start, goal *grid.Cell, alg Algorithm) *Stepper {
	e.reset()
	s := &Stepper{
		engine:     e,
		generation: e.generation,
		policy:     e.policyFor(alg),
		profiler:   e.profiler,
		goal:       goal,
		bounds:     emptyBounds(),
	}
	if !goal.Walkable {
		s.done = true
		return s
	}

	root := e.touch(start)
	root.g = 0
	root.h = s.policy.heuristic(start, goal)
	root.parent = root
	s.bounds.observe(root.f())
	e.open.Enqueue(root)
	return s
}

// Step pops one cell. Once the search is done further calls keep returning
// the final step.
func (s *Stepper) Step() (Step, error) {
	e := s.engine
	if s.generation != e.generation {
		return Step{}, fmt.Errorf("%w: stepper superseded by a newer search", ErrInvariant)
	}
	if s.done {
		return Step{Done: true, Found: s.found, Index: s.iteration}, nil
	}
	if e.open.Len() == 0 {
		s.done = true
		return Step{Done: true, Index: s.iteration}, nil
	}

	current, err := e.open.DequeueBest()
	if err != nil {
		return Step{}, fmt.Errorf("%w: dequeue at iteration %d: %v", ErrInvariant, s.iteration, err)
	}
	current.closed = true
	s.expanded++
	if s.profiler != nil {
		s.profiler.RecordNodeExpanded()
	}

	step := Step{Current: current.cell, Index: s.iteration}
	if current.cell == s.goal {
		s.done, s.found = true, true
		s.goalNode = current
		step.Done, step.Found = true, true
		return step, nil
	}
	if e.maxExpansions > 0 && s.expanded >= e.maxExpansions {
		s.done, s.truncated = true, true
		step.Done = true
		return step, nil
	}

	e.scratch = e.grid.AppendNeighbors(e.scratch[:0], current.cell)
	if s.profiler != nil {
		s.profiler.RecordNeighborGeneration(len(e.scratch))
	}
	batch := make([]*grid.Cell, 0, len(e.scratch))
	for _, cell := range e.scratch {
		next := e.touch(cell)
		if next.closed {
			continue
		}
		tentative := current.g + s.policy.step(current.cell, cell)
		queued := e.open.Contains(next)
		if queued && tentative >= next.g {
			continue
		}

		next.g = tentative
		next.h = s.policy.heuristic(cell, s.goal)
		next.parent = current
		if s.profiler != nil {
			s.profiler.RecordHeuristicEvaluation()
		}
		if queued {
			if err := e.open.Update(next); err != nil {
				return Step{}, fmt.Errorf("%w: update %s: %v", ErrInvariant, cell.Coord, err)
			}
			if s.profiler != nil {
				s.profiler.RecordQueueUpdate()
			}
		} else {
			e.open.Enqueue(next)
		}
		s.bounds.observe(next.f())
		batch = append(batch, cell)
	}

	step.Batch = batch
	s.iteration++
	return step, nil
}

// Result summarizes the search once Step has reported Done. Batches are left
// to the caller, which saw them step by step.
func (s *Stepper) Result() (Result, error) {
	if !s.done {
		return Result{}, fmt.Errorf("%w: result requested before the search finished", ErrInvariant)
	}
	result := Result{
		Expanded:  s.expanded,
		Truncated: s.truncated,
		Bounds:    s.bounds,
	}
	if s.expanded == 0 {
		result.Bounds = CostBounds{}
	}
	if !s.found {
		return result, nil
	}
	if s.generation != s.engine.generation {
		return Result{}, fmt.Errorf("%w: stepper superseded by a newer search", ErrInvariant)
	}
	path, err := s.engine.retrace(s.goalNode)
	if err != nil {
		return Result{}, err
	}
	result.Path = path
	result.Success = true
	result.Cost = s.goalNode.g
	return result, nil
}
