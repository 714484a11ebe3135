package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"runtime"
	"time"

	"gridroute/internal/config"
	"gridroute/internal/dispatch"
	"gridroute/internal/grid"
	"gridroute/internal/pathfinding"
	"gridroute/internal/terrain"
)

// follower chases a wandering target and asks for a new route whenever its
// throttle allows.
type follower struct {
	name     string
	position *grid.Cell
	target   *grid.Cell
	throttle *dispatch.Throttle
}

type tally struct {
	delivered int
	found     int
	truncated int
	failed    int
	cost      int64
	steps     int64
}

func main() {
	var (
		totalRequests = flag.Int("requests", 2000, "number of route requests to submit")
		workers       = flag.Int("workers", runtime.NumCPU(), "dispatcher worker goroutines")
		agents        = flag.Int("agents", 16, "simulated followers sharing the request budget")
		size          = flag.Int("size", 128, "grid cells per axis")
		algFlag       = flag.String("algorithm", "astar", "bfs, dijkstra or astar")
		priorityFlag  = flag.String("priority", "distance", "distance, time or fuel")
		maxExpansions = flag.Int("max-expansions", 0, "expansion budget per search (0 is unlimited)")
		tick          = flag.Duration("tick", 50*time.Millisecond, "simulated time between target moves")
		timeout       = flag.Duration("timeout", time.Minute, "overall profile timeout")
		seed          = flag.Int64("seed", 1337, "random seed for terrain and follower movement")
		verbose       = flag.Bool("v", false, "log terrain bake progress")
	)
	flag.Parse()

	if *totalRequests <= 0 {
		fmt.Fprintln(os.Stderr, "requests must be positive")
		os.Exit(1)
	}
	if *workers <= 0 {
		fmt.Fprintln(os.Stderr, "workers must be positive")
		os.Exit(1)
	}
	if *agents <= 0 {
		fmt.Fprintln(os.Stderr, "agents must be positive")
		os.Exit(1)
	}
	if *size <= 1 {
		fmt.Fprintln(os.Stderr, "size must be greater than one")
		os.Exit(1)
	}

	alg, err := pathfinding.ParseAlgorithm(*algFlag)
	if err != nil {
		log.Fatalf("algorithm: %v", err)
	}

	cfg := config.Default()
	cfg.Grid.Bounds = config.RectConfig{MinX: 0, MinY: 0, MaxX: float64(*size), MaxY: float64(*size)}
	cfg.Grid.Obstacles = nil
	cfg.Grid.BlurRadius = 1
	cfg.Terrain.Seed = *seed
	cfg.Search.Priority = *priorityFlag
	cfg.Search.MaxExpansions = *maxExpansions
	cfg.Dispatch.Workers = *workers
	cfg.Dispatch.QueueSize = *workers * 4
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	bakeLog := io.Discard
	if *verbose {
		bakeLog = os.Stderr
	}
	buildStart := time.Now()
	spec, err := terrain.SpecFromConfig(ctx, cfg, 0, log.New(bakeLog, "terrain ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		log.Fatalf("terrain: %v", err)
	}
	g, err := grid.Build(spec)
	if err != nil {
		log.Fatalf("build grid: %v", err)
	}
	buildDuration := time.Since(buildStart)

	candidates := walkableCells(g)
	if len(candidates) < 2 {
		fmt.Fprintln(os.Stderr, "not enough walkable cells to profile")
		os.Exit(1)
	}

	dispatchCfg, err := dispatch.ConfigFrom(cfg)
	if err != nil {
		log.Fatalf("dispatch config: %v", err)
	}
	metrics := &pathfinding.SearchMetrics{}
	d := dispatch.New(g, dispatchCfg,
		dispatch.WithProfiler(metrics.Profiler()),
		dispatch.WithLogger(log.New(os.Stderr, "dispatch ", log.LstdFlags|log.Lmicroseconds)),
	)
	d.Start(ctx)

	rng := rand.New(rand.NewSource(*seed))
	followers := make([]*follower, *agents)
	for i := range followers {
		followers[i] = &follower{
			name:     fmt.Sprintf("agent-%d", i),
			position: candidates[rng.Intn(len(candidates))],
			target:   candidates[rng.Intn(len(candidates))],
			throttle: dispatch.NewThrottle(cfg.Dispatch.ReplanInterval.Duration(), cfg.Dispatch.MoveThreshold),
		}
	}

	var t tally
	callback := func(o dispatch.Outcome) {
		t.delivered++
		switch {
		case o.Err != nil:
			t.failed++
		case o.Result.Success:
			t.found++
			t.cost += int64(o.Result.Cost)
			t.steps += int64(len(o.Result.Path) - 1)
		case o.Result.Truncated:
			t.truncated++
		default:
			t.failed++
		}
	}

	submitted, rejected := 0, 0
	clock := time.Unix(0, 0)
	wallStart := time.Now()
	for submitted < *totalRequests && ctx.Err() == nil {
		clock = clock.Add(*tick)
		for _, f := range followers {
			if submitted >= *totalRequests {
				break
			}
			f.target = wander(g, f.target, rng)
			if !f.throttle.ShouldReplan(clock, f.target.World) {
				continue
			}
			req := dispatch.Request{
				Agent:     f.name,
				Start:     f.position.World,
				End:       f.target.World,
				Algorithm: alg,
				Callback:  callback,
			}
			for {
				err := d.Submit(req)
				if err == nil {
					submitted++
					break
				}
				if !errors.Is(err, dispatch.ErrQueueFull) {
					log.Fatalf("submit: %v", err)
				}
				rejected++
				d.Drain()
				time.Sleep(100 * time.Microsecond)
			}
		}
		d.Drain()
	}

	d.Close()
	d.Wait()
	d.Drain()
	wallDuration := time.Since(wallStart)

	snap := metrics.Snapshot()
	searches := snap.Searches
	if searches == 0 {
		searches = 1
	}
	avgSteps := 0.0
	avgCost := 0.0
	if t.found > 0 {
		avgSteps = float64(t.steps) / float64(t.found)
		avgCost = float64(t.cost) / float64(t.found)
	}

	sizeX, sizeY := g.Size()
	fmt.Println("== Grid Route Profile ==")
	fmt.Printf("Grid: %dx%d cells (%d walkable), built in %s\n", sizeX, sizeY, len(candidates), buildDuration)
	fmt.Printf("Algorithm: %s, priority: %s\n", alg, dispatchCfg.Priority)
	fmt.Printf("Workers: %d, agents: %d\n", *workers, *agents)
	fmt.Printf("Submitted: %d (queue-full retries: %d)\n", submitted, rejected)
	fmt.Printf("Searches run: %d, superseded before delivery: %d\n", snap.Searches, submitted-t.delivered)
	fmt.Printf("Delivered: %d (found %d, truncated %d, failed %d)\n", t.delivered, t.found, t.truncated, t.failed)
	fmt.Printf("Average path length (steps): %.2f, average cost: %.2f\n", avgSteps, avgCost)
	fmt.Printf("Average search time: %s\n", snap.SearchTime/time.Duration(searches))
	fmt.Printf("Wall clock duration: %s\n", wallDuration)
	fmt.Printf("Average nodes expanded: %.2f\n", float64(snap.NodesExpanded)/float64(searches))
	fmt.Printf("Average heuristic evaluations: %.2f\n", float64(snap.HeuristicEvaluations)/float64(searches))
	fmt.Printf("Average queue updates: %.2f\n", float64(snap.QueueUpdates)/float64(searches))
	if snap.NeighborGenerations > 0 {
		fmt.Printf("Average neighbours per expansion: %.2f\n", float64(snap.NeighborCount)/float64(snap.NeighborGenerations))
	}
}

func walkableCells(g *grid.Grid) []*grid.Cell {
	cells := make([]*grid.Cell, 0, g.Len())
	for i := 0; i < g.Len(); i++ {
		if c := g.CellByIndex(i); c.Walkable {
			cells = append(cells, c)
		}
	}
	return cells
}

func wander(g *grid.Grid, c *grid.Cell, rng *rand.Rand) *grid.Cell {
	var open []*grid.Cell
	for _, n := range g.Neighbors(c) {
		if n.Walkable {
			open = append(open, n)
		}
	}
	if len(open) == 0 {
		return c
	}
	return open[rng.Intn(len(open))]
}
