package pathfinding

import (
	"fmt"
	"strings"

	"gridroute/internal/grid"
)

// Algorithm selects the step cost and heuristic used by the shared search loop.
type Algorithm int

const (
	BreadthFirst Algorithm = iota
	UniformCost
	AStar
)

func (a Algorithm) String() string {
	switch a {
	case BreadthFirst:
		return "bfs"
	case UniformCost:
		return "dijkstra"
	case AStar:
		return "astar"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm parses a textual algorithm label.
func ParseAlgorithm(value string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "bfs", "breadth-first", "breadthfirst":
		return BreadthFirst, nil
	case "dijkstra", "uniform-cost", "ucs":
		return UniformCost, nil
	case "astar", "a*", "a-star":
		return AStar, nil
	default:
		return AStar, fmt.Errorf("unknown search algorithm %q", value)
	}
}

func (a Algorithm) valid() bool {
	return a >= BreadthFirst && a <= AStar
}

// policy is the pair of cost functions that turns the shared loop into one
// of the three searches.
type policy struct {
	step      func(from, to *grid.Cell) int
	heuristic func(n, goal *grid.Cell) int
}

func zeroHeuristic(*grid.Cell, *grid.Cell) int { return 0 }

func (e *Engine) policyFor(a Algorithm) policy {
	weighted := func(from, to *grid.Cell) int {
		return grid.Distance(from, to) + e.grid.MovementCost(to, e.priority)
	}
	switch a {
	case BreadthFirst:
		return policy{
			step:      func(*grid.Cell, *grid.Cell) int { return 1 },
			heuristic: zeroHeuristic,
		}
	case UniformCost:
		return policy{step: weighted, heuristic: zeroHeuristic}
	default:
		return policy{step: weighted, heuristic: grid.Distance}
	}
}
