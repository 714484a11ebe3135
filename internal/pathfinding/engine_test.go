package pathfinding

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"

	"gridroute/internal/grid"
)

func maskObstacle(rows []string) grid.ObstacleTest {
	return func(p orb.Point, _ float64) bool {
		x, y := int(p.X()), int(p.Y())
		if y < 0 || y >= len(rows) || x < 0 || x >= len(rows[y]) {
			return false
		}
		return rows[y][x] == '#'
	}
}

func newTestGrid(t *testing.T, rows []string, regions ...grid.TerrainRegion) *grid.Grid {
	t.Helper()

	g, err := grid.Build(grid.Spec{
		Bounds:     orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(len(rows[0])), float64(len(rows))}},
		CellRadius: 0.5,
		Obstacle:   maskObstacle(rows),
		Regions:    regions,
	})
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	return g
}

func openRows(width, height int) []string {
	rows := make([]string, height)
	for y := range rows {
		row := make([]byte, width)
		for x := range row {
			row[x] = '.'
		}
		rows[y] = string(row)
	}
	return rows
}

func cellAt(t *testing.T, g *grid.Grid, x, y int) *grid.Cell {
	t.Helper()
	c, ok := g.Cell(x, y)
	if !ok {
		t.Fatalf("cell (%d,%d) out of range", x, y)
	}
	return c
}

func pathCoords(path []*grid.Cell) []grid.Coord {
	out := make([]grid.Coord, len(path))
	for i, c := range path {
		out[i] = c.Coord
	}
	return out
}

func assertValidPath(t *testing.T, g *grid.Grid, path []*grid.Cell, start, goal *grid.Cell) {
	t.Helper()
	if len(path) == 0 {
		t.Fatalf("expected a path")
	}
	if path[0] != start || path[len(path)-1] != goal {
		t.Fatalf("path runs %v -> %v, want %v -> %v", path[0].Coord, path[len(path)-1].Coord, start.Coord, goal.Coord)
	}
	for i := 1; i < len(path); i++ {
		prev, cur := path[i-1], path[i]
		dx, dy := cur.X-prev.X, cur.Y-prev.Y
		if dx < -1 || dx > 1 || dy < -1 || dy > 1 || (dx == 0 && dy == 0) {
			t.Fatalf("step %d jumps from %v to %v", i, prev.Coord, cur.Coord)
		}
		if !cur.Walkable {
			t.Fatalf("step %d enters blocked cell %v", i, cur.Coord)
		}
	}
}

func TestOpenFiveByFiveScenario(t *testing.T) {
	g := newTestGrid(t, openRows(5, 5))
	engine := NewEngine(g)
	start := cellAt(t, g, 0, 0)
	goal := cellAt(t, g, 4, 4)
	diagonal := []grid.Coord{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}}

	tests := []struct {
		alg      Algorithm
		cost     int
		expanded int
		visited  int
	}{
		{alg: AStar, cost: 60, expanded: 5, visited: 19},
		{alg: UniformCost, cost: 60, expanded: -1, visited: -1},
		{alg: BreadthFirst, cost: 4, expanded: -1, visited: 25},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			result, err := engine.SearchCells(context.Background(), start, goal, tt.alg)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if !result.Success {
				t.Fatalf("expected success")
			}
			got := pathCoords(result.Path)
			if len(got) != len(diagonal) {
				t.Fatalf("unexpected path %v", got)
			}
			for i := range diagonal {
				if got[i] != diagonal[i] {
					t.Fatalf("unexpected path %v", got)
				}
			}
			if result.Cost != tt.cost {
				t.Fatalf("cost: got %d want %d", result.Cost, tt.cost)
			}
			if tt.expanded >= 0 && result.Expanded != tt.expanded {
				t.Fatalf("expanded: got %d want %d", result.Expanded, tt.expanded)
			}
			if tt.visited >= 0 && result.Visited() != tt.visited {
				t.Fatalf("visited: got %d want %d", result.Visited(), tt.visited)
			}
			if len(result.Batches) != result.Expanded-1 {
				t.Fatalf("expected one batch per non-goal expansion, got %d batches for %d expansions", len(result.Batches), result.Expanded)
			}
		})
	}

	astar, _ := engine.SearchCells(context.Background(), start, goal, AStar)
	if astar.Visited() >= g.Len() {
		t.Fatalf("A* should leave cells undiscovered, visited %d of %d", astar.Visited(), g.Len())
	}
	if astar.Bounds.MinF != 56 || astar.Bounds.MaxF != 80 {
		t.Fatalf("unexpected f bounds %+v", astar.Bounds)
	}
	wantFirst := []grid.Coord{{X: 0, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	first := pathCoords(astar.Batches[0])
	for i := range wantFirst {
		if first[i] != wantFirst[i] {
			t.Fatalf("first batch %v, want %v", first, wantFirst)
		}
	}
}

func TestStartEqualsGoal(t *testing.T) {
	g := newTestGrid(t, openRows(3, 3))
	engine := NewEngine(g)
	c := cellAt(t, g, 1, 1)

	for _, alg := range []Algorithm{BreadthFirst, UniformCost, AStar} {
		result, err := engine.SearchCells(context.Background(), c, c, alg)
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		if !result.Success || len(result.Path) != 1 || result.Path[0] != c {
			t.Fatalf("%s: expected single-cell path, got %v", alg, pathCoords(result.Path))
		}
		if len(result.Batches) != 0 || result.Cost != 0 || result.Expanded != 1 {
			t.Fatalf("%s: unexpected result %+v", alg, result)
		}
	}
}

func TestUnwalkableGoalFailsWithoutExpanding(t *testing.T) {
	g := newTestGrid(t, []string{
		"...",
		"..#",
		"...",
	})
	engine := NewEngine(g)

	result, err := engine.SearchCells(context.Background(), cellAt(t, g, 0, 0), cellAt(t, g, 2, 1), AStar)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Success || len(result.Path) != 0 || len(result.Batches) != 0 || result.Expanded != 0 {
		t.Fatalf("expected immediate failure, got %+v", result)
	}
	if result.Visited() != 0 {
		t.Fatalf("expected nothing visited, got %d", result.Visited())
	}
}

func TestUnreachableGoalExhaustsComponent(t *testing.T) {
	g := newTestGrid(t, []string{
		"..#..",
		"..#..",
		"..#..",
	})
	engine := NewEngine(g)

	for _, alg := range []Algorithm{BreadthFirst, UniformCost, AStar} {
		result, err := engine.SearchCells(context.Background(), cellAt(t, g, 0, 1), cellAt(t, g, 4, 1), alg)
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		if result.Success || len(result.Path) != 0 {
			t.Fatalf("%s: expected failure, got path %v", alg, pathCoords(result.Path))
		}
		if result.Expanded != 6 || result.Visited() != 6 {
			t.Fatalf("%s: expected the 6-cell component to be explored, expanded %d visited %d", alg, result.Expanded, result.Visited())
		}
	}
}

func TestWeightedPriorityAvoidsSlowTerrain(t *testing.T) {
	mud := grid.TerrainRegion{
		Name:       "mud",
		Contains:   func(p orb.Point) bool { return p.X() > 1 && p.X() < 4 && p.Y() < 4 },
		TimeWeight: 40,
		FuelWeight: 1,
		Priority:   1,
	}
	g := newTestGrid(t, openRows(6, 6), mud)
	start := cellAt(t, g, 0, 0)
	goal := cellAt(t, g, 5, 0)

	direct, err := NewEngine(g, WithPriority(grid.ShortestDistance)).SearchCells(context.Background(), start, goal, AStar)
	if err != nil {
		t.Fatalf("distance search: %v", err)
	}
	for _, c := range direct.Path {
		if c.Y != 0 {
			t.Fatalf("distance priority should walk straight, got %v", pathCoords(direct.Path))
		}
	}

	detour, err := NewEngine(g, WithPriority(grid.ShortestTime)).SearchCells(context.Background(), start, goal, AStar)
	if err != nil {
		t.Fatalf("time search: %v", err)
	}
	assertValidPath(t, g, detour.Path, start, goal)
	for _, c := range detour.Path {
		if c.Terrain == 0 {
			t.Fatalf("time priority should avoid mud, got %v", pathCoords(detour.Path))
		}
	}
}

func TestRepeatedSearchesAreIdentical(t *testing.T) {
	g := newTestGrid(t, []string{
		"......",
		".####.",
		"......",
		"#.##.#",
		"......",
	})
	engine := NewEngine(g)
	start := cellAt(t, g, 0, 0)
	goal := cellAt(t, g, 5, 4)

	first, err := engine.SearchCells(context.Background(), start, goal, AStar)
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	// An unrelated search in between must not leak state.
	if _, err := engine.SearchCells(context.Background(), goal, start, UniformCost); err != nil {
		t.Fatalf("interleaved search: %v", err)
	}
	second, err := engine.SearchCells(context.Background(), start, goal, AStar)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}

	if first.Cost != second.Cost || first.Expanded != second.Expanded || len(first.Batches) != len(second.Batches) {
		t.Fatalf("searches differ: %+v vs %+v", first, second)
	}
	for i := range first.Batches {
		a, b := pathCoords(first.Batches[i]), pathCoords(second.Batches[i])
		if len(a) != len(b) {
			t.Fatalf("batch %d differs: %v vs %v", i, a, b)
		}
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("batch %d differs: %v vs %v", i, a, b)
			}
		}
	}
}

func TestSearchHonoursContextCancellation(t *testing.T) {
	g := newTestGrid(t, openRows(8, 8))
	engine := NewEngine(g)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Search(ctx, Request{Start: orb.Point{0.5, 0.5}, End: orb.Point{7.5, 7.5}, Algorithm: AStar})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The engine stays usable afterwards.
	result, err := engine.Search(context.Background(), Request{Start: orb.Point{0.5, 0.5}, End: orb.Point{7.5, 7.5}, Algorithm: AStar})
	if err != nil || !result.Success {
		t.Fatalf("search after cancellation: success=%v err=%v", result.Success, err)
	}
}

func TestMaxExpansionsTruncates(t *testing.T) {
	g := newTestGrid(t, openRows(10, 10))
	engine := NewEngine(g, WithMaxExpansions(3))

	result, err := engine.SearchCells(context.Background(), cellAt(t, g, 0, 0), cellAt(t, g, 9, 9), UniformCost)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Success || !result.Truncated || result.Expanded != 3 {
		t.Fatalf("expected truncated failure after 3 expansions, got %+v", result)
	}
	if len(result.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(result.Batches))
	}
}

func TestSearchMapsWorldPoints(t *testing.T) {
	g := newTestGrid(t, openRows(5, 5))
	engine := NewEngine(g)

	result, err := engine.Search(context.Background(), Request{Start: orb.Point{-3, 0.2}, End: orb.Point{2.6, 40}, Algorithm: BreadthFirst})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := pathCoords(result.Path)
	if got[0] != (grid.Coord{X: 0, Y: 0}) || got[len(got)-1] != (grid.Coord{X: 2, Y: 4}) {
		t.Fatalf("unexpected endpoints %v", got)
	}
	waypoints := result.Waypoints()
	if waypoints[len(waypoints)-1] != (orb.Point{2.5, 4.5}) {
		t.Fatalf("unexpected final waypoint %v", waypoints[len(waypoints)-1])
	}
}

func TestStepperReplaysSearch(t *testing.T) {
	g := newTestGrid(t, []string{
		".....",
		".###.",
		".....",
	})
	engine := NewEngine(g)
	start := cellAt(t, g, 0, 1)
	goal := cellAt(t, g, 4, 1)

	want, err := engine.SearchCells(context.Background(), start, goal, AStar)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	stepper := engine.Stepper(start, goal, AStar)
	var batches [][]*grid.Cell
	for i := 0; ; i++ {
		step, err := stepper.Step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if step.Done {
			if !step.Found || step.Current != goal {
				t.Fatalf("expected the final step to pop the goal, got %+v", step)
			}
			break
		}
		if step.Index != i {
			t.Fatalf("step index %d, want %d", step.Index, i)
		}
		batches = append(batches, step.Batch)
	}
	if len(batches) != len(want.Batches) {
		t.Fatalf("stepper produced %d batches, search %d", len(batches), len(want.Batches))
	}

	again, err := stepper.Step()
	if err != nil || !again.Done || !again.Found {
		t.Fatalf("finished stepper should keep reporting done, got %+v %v", again, err)
	}
	result, err := stepper.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Cost != want.Cost || len(result.Path) != len(want.Path) {
		t.Fatalf("stepper result %+v differs from search %+v", result, want)
	}

	stale := engine.Stepper(start, goal, BreadthFirst)
	engine.Stepper(goal, start, BreadthFirst)
	if _, err := stale.Step(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected superseded stepper to fail with ErrInvariant, got %v", err)
	}
}

func TestRetraceDetectsBrokenParents(t *testing.T) {
	g := newTestGrid(t, openRows(3, 1))
	engine := NewEngine(g)
	a := engine.touch(cellAt(t, g, 0, 0))
	b := engine.touch(cellAt(t, g, 1, 0))
	a.parent = b
	b.parent = a

	if _, err := engine.retrace(b); !errors.Is(err, ErrParentCycle) {
		t.Fatalf("expected ErrParentCycle, got %v", err)
	}
}

func TestLowerCostTieBreaksOnHeuristic(t *testing.T) {
	a := &node{g: 10, h: 4}
	b := &node{g: 6, h: 8}
	if !lowerCost(a, b) || lowerCost(b, a) {
		t.Fatalf("equal f should prefer the smaller h")
	}
	c := &node{g: 1, h: 1}
	if !lowerCost(c, a) {
		t.Fatalf("lower f should win")
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := map[string]Algorithm{
		"bfs":           BreadthFirst,
		"breadth-first": BreadthFirst,
		"Dijkstra":      UniformCost,
		"uniform-cost":  UniformCost,
		"astar":         AStar,
		"a*":            AStar,
	}
	for in, want := range tests {
		got, err := ParseAlgorithm(in)
		if err != nil || got != want {
			t.Fatalf("ParseAlgorithm(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAlgorithm("greedy"); err == nil {
		t.Fatalf("expected unknown algorithm to fail")
	}
}

func TestRandomGridsMatchBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 40; trial++ {
		width, height := 4+rng.Intn(6), 4+rng.Intn(6)
		rows := randomRows(rng, width, height, 0.25)
		slow := make(map[grid.Coord]bool)
		for i := 0; i < width*height/4; i++ {
			slow[grid.Coord{X: rng.Intn(width), Y: rng.Intn(height)}] = true
		}
		region := grid.TerrainRegion{
			Name: "slow",
			Contains: func(p orb.Point) bool {
				return slow[grid.Coord{X: int(p.X()), Y: int(p.Y())}]
			},
			TimeWeight: 1 + rng.Intn(20),
			FuelWeight: 1,
			Priority:   1,
		}
		g := newTestGrid(t, rows, region)
		engine := NewEngine(g, WithPriority(grid.ShortestTime))

		start := g.CellByIndex(rng.Intn(g.Len()))
		goal := g.CellByIndex(rng.Intn(g.Len()))
		hops := bruteForce(g, start, func(_, _ *grid.Cell) int { return 1 })
		costs := bruteForce(g, start, func(from, to *grid.Cell) int {
			return grid.Distance(from, to) + g.MovementCost(to, grid.ShortestTime)
		})

		bfs, err := engine.SearchCells(context.Background(), start, goal, BreadthFirst)
		if err != nil {
			t.Fatalf("trial %d bfs: %v", trial, err)
		}
		ucs, err := engine.SearchCells(context.Background(), start, goal, UniformCost)
		if err != nil {
			t.Fatalf("trial %d ucs: %v", trial, err)
		}
		astar, err := engine.SearchCells(context.Background(), start, goal, AStar)
		if err != nil {
			t.Fatalf("trial %d astar: %v", trial, err)
		}

		reachable := goal.Walkable && costs[goal.Index] != math.MaxInt
		if bfs.Success != reachable || ucs.Success != reachable || astar.Success != reachable {
			t.Fatalf("trial %d: reachability mismatch bfs=%v ucs=%v astar=%v want %v", trial, bfs.Success, ucs.Success, astar.Success, reachable)
		}
		if !reachable {
			continue
		}

		assertValidPath(t, g, bfs.Path, start, goal)
		assertValidPath(t, g, ucs.Path, start, goal)
		assertValidPath(t, g, astar.Path, start, goal)
		if bfs.Cost != hops[goal.Index] || len(bfs.Path)-1 != hops[goal.Index] {
			t.Fatalf("trial %d: bfs used %d hops, minimum is %d", trial, len(bfs.Path)-1, hops[goal.Index])
		}
		if ucs.Cost != costs[goal.Index] {
			t.Fatalf("trial %d: ucs cost %d, minimum is %d", trial, ucs.Cost, costs[goal.Index])
		}
		if astar.Cost != ucs.Cost {
			t.Fatalf("trial %d: astar cost %d differs from ucs %d", trial, astar.Cost, ucs.Cost)
		}
		if astar.Expanded > ucs.Expanded {
			t.Fatalf("trial %d: astar expanded %d cells, ucs only %d", trial, astar.Expanded, ucs.Expanded)
		}
	}
}

func randomRows(rng *rand.Rand, width, height int, density float64) []string {
	rows := make([]string, height)
	for y := range rows {
		row := make([]byte, width)
		for x := range row {
			row[x] = '.'
			if rng.Float64() < density {
				row[x] = '#'
			}
		}
		rows[y] = string(row)
	}
	return rows
}

// bruteForce is Bellman-Ford over the walkable-neighbour graph.
func bruteForce(g *grid.Grid, start *grid.Cell, step func(from, to *grid.Cell) int) []int {
	dist := make([]int, g.Len())
	for i := range dist {
		dist[i] = math.MaxInt
	}
	dist[start.Index] = 0
	for round := 0; round < g.Len(); round++ {
		changed := false
		for i := 0; i < g.Len(); i++ {
			if dist[i] == math.MaxInt {
				continue
			}
			from := g.CellByIndex(i)
			for _, to := range g.Neighbors(from) {
				if d := dist[i] + step(from, to); d < dist[to.Index] {
					dist[to.Index] = d
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	return dist
}
