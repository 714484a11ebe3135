package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"

	"gridroute/internal/config"
	"gridroute/internal/dispatch"
	"gridroute/internal/grid"
	"gridroute/internal/pathfinding"
	"gridroute/internal/route"
	"gridroute/internal/terrain"
)

type response struct {
	Success    bool          `json:"success"`
	Truncated  bool          `json:"truncated,omitempty"`
	Algorithm  string        `json:"algorithm"`
	Priority   string        `json:"priority"`
	Cost       int           `json:"cost"`
	Expanded   int           `json:"expanded"`
	Visited    int           `json:"visited"`
	Batches    int           `json:"batches"`
	MinF       int           `json:"minF"`
	MaxF       int           `json:"maxF"`
	Cells      []grid.Coord  `json:"cells,omitempty"`
	Waypoints  []orb.Point   `json:"waypoints,omitempty"`
	Length     float64       `json:"length,omitempty"`
	FinishLine int           `json:"finishLine,omitempty"`
	SlowDown   int           `json:"slowDown,omitempty"`
	Elapsed    time.Duration `json:"elapsedNanos"`
}

func main() {
	cfgPath := flag.String("config", "", "path to a JSON or YAML configuration file")
	writeDefault := flag.String("write-default", "", "write the default YAML configuration to this path and exit")
	synthetic := flag.Bool("synthetic", false, "decorate the grid with value-noise terrain")
	fromX := flag.Float64("fromx", 0, "start world X")
	fromY := flag.Float64("fromy", 0, "start world Y")
	toX := flag.Float64("tox", 0, "end world X")
	toY := flag.Float64("toy", 0, "end world Y")
	algorithm := flag.String("algorithm", "", "bfs, dijkstra or astar (empty uses the configured algorithm)")
	priority := flag.String("priority", "", "distance, time or fuel (empty uses the configured priority)")
	timeout := flag.Duration("timeout", 5*time.Second, "overall search timeout")
	flag.Parse()

	if *writeDefault != "" {
		if err := config.WriteDefault(*writeDefault); err != nil {
			log.Fatalf("write default config: %v", err)
		}
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *algorithm != "" {
		cfg.Search.Algorithm = *algorithm
	}
	if *priority != "" {
		cfg.Search.Priority = *priority
	}

	alg, err := pathfinding.ParseAlgorithm(cfg.Search.Algorithm)
	if err != nil {
		log.Fatalf("search.algorithm: %v", err)
	}
	dispatchCfg, err := dispatch.ConfigFrom(cfg)
	if err != nil {
		log.Fatalf("dispatch config: %v", err)
	}
	dispatchCfg.Workers = 1

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	g, err := buildGrid(ctx, cfg, *synthetic)
	if err != nil {
		log.Fatalf("build grid: %v", err)
	}

	d := dispatch.New(g, dispatchCfg)
	d.Start(ctx)
	defer func() {
		d.Close()
		d.Wait()
	}()

	var (
		outcome   dispatch.Outcome
		delivered bool
	)
	started := time.Now()
	err = d.Submit(dispatch.Request{
		Agent:     "cli",
		Start:     orb.Point{*fromX, *fromY},
		End:       orb.Point{*toX, *toY},
		Algorithm: alg,
		Callback: func(o dispatch.Outcome) {
			outcome = o
			delivered = true
		},
	})
	if err != nil {
		log.Fatalf("submit: %v", err)
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for !delivered {
		select {
		case <-ctx.Done():
			log.Fatalf("search did not finish: %v", ctx.Err())
		case <-ticker.C:
			d.Drain()
		}
	}
	if outcome.Err != nil {
		log.Fatalf("search: %v", outcome.Err)
	}

	resp := toResponse(outcome, alg, dispatchCfg.Priority, time.Since(started))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Fatalf("encode response: %v", err)
	}
}

func buildGrid(ctx context.Context, cfg *config.Config, synthetic bool) (*grid.Grid, error) {
	if !synthetic {
		return grid.FromConfig(cfg.Grid)
	}
	logger := log.New(os.Stderr, "terrain ", log.LstdFlags|log.Lmicroseconds)
	spec, err := terrain.SpecFromConfig(ctx, cfg, 0, logger)
	if err != nil {
		return nil, err
	}
	return grid.Build(spec)
}

func toResponse(o dispatch.Outcome, alg pathfinding.Algorithm, priority grid.Priority, elapsed time.Duration) response {
	r := o.Result
	resp := response{
		Success:   r.Success,
		Truncated: r.Truncated,
		Algorithm: alg.String(),
		Priority:  priority.String(),
		Cost:      r.Cost,
		Expanded:  r.Expanded,
		Visited:   r.Visited(),
		Batches:   len(r.Batches),
		MinF:      r.Bounds.MinF,
		MaxF:      r.Bounds.MaxF,
		Elapsed:   elapsed,
	}
	for _, c := range r.Path {
		resp.Cells = append(resp.Cells, c.Coord)
	}
	if o.Path != nil {
		resp.Waypoints = o.Path.Waypoints
		resp.Length = route.Length(o.Path.Waypoints)
		resp.FinishLine = o.Path.FinishLineIndex
		resp.SlowDown = o.Path.SlowDownIndex
	}
	return resp
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			fmt.Fprintln(os.Stderr, "interrupted")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
