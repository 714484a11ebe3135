// Package dispatch runs searches on worker goroutines and hands their results
// back to a single consumer, which applies them from its own loop via Drain.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/paulmach/orb"

	"gridroute/internal/config"
	"gridroute/internal/grid"
	"gridroute/internal/pathfinding"
	"gridroute/internal/route"
)

var (
	ErrClosed    = errors.New("dispatcher closed")
	ErrQueueFull = errors.New("dispatch queue full")
)

// Request asks for a route for one agent. A newer request for the same agent
// supersedes the older one; requests without an agent never supersede.
type Request struct {
	Agent     string
	Start     orb.Point
	End       orb.Point
	Algorithm pathfinding.Algorithm
	Callback  func(Outcome)
}

// Outcome is delivered to the request's callback from Drain.
type Outcome struct {
	Agent  string
	Result pathfinding.Result
	Path   *route.Path // nil unless the search succeeded
	Err    error
}

// Config holds the dispatcher settings.
type Config struct {
	Workers          int
	QueueSize        int
	Priority         grid.Priority
	MaxExpansions    int
	TurnDistance     float64
	StoppingDistance float64
	Simplify         bool
}

// ConfigFrom collects the dispatcher settings spread over the file
// configuration.
func ConfigFrom(cfg *config.Config) (Config, error) {
	priority, err := grid.ParsePriority(cfg.Search.Priority)
	if err != nil {
		return Config{}, fmt.Errorf("search.priority: %w", err)
	}
	return Config{
		Workers:          cfg.Dispatch.Workers,
		QueueSize:        cfg.Dispatch.QueueSize,
		Priority:         priority,
		MaxExpansions:    cfg.Search.MaxExpansions,
		TurnDistance:     cfg.Path.TurnDistance,
		StoppingDistance: cfg.Path.StoppingDistance,
		Simplify:         cfg.Path.Simplify,
	}, nil
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithProfiler reports every worker search to profiler.
func WithProfiler(profiler pathfinding.SearchProfiler) Option {
	return func(d *Dispatcher) { d.profiler = profiler }
}

type agentState struct {
	generation uint64
	cancel     context.CancelFunc
}

type job struct {
	req        Request
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

// Dispatcher owns a pool of search workers. Each worker has its own Engine;
// the grid is shared read-only.
type Dispatcher struct {
	grid     *grid.Grid
	cfg      Config
	logger   *log.Logger
	profiler pathfinding.SearchProfiler

	jobs    chan job
	results *resultQueue

	root       context.Context
	cancelRoot context.CancelFunc

	mu      sync.Mutex
	agents  map[string]*agentState
	closed  bool
	started bool

	wg sync.WaitGroup
}

func New(g *grid.Grid, cfg Config, opts ...Option) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	root, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		grid:       g,
		cfg:        cfg,
		logger:     log.New(log.Writer(), "dispatch ", log.LstdFlags|log.Lmicroseconds),
		jobs:       make(chan job, cfg.QueueSize),
		results:    newResultQueue(),
		root:       root,
		cancelRoot: cancel,
		agents:     make(map[string]*agentState),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers. Cancelling ctx stops them and aborts in-flight
// searches.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	context.AfterFunc(ctx, d.cancelRoot)
	for i := 0; i < d.cfg.Workers; i++ {
		engine := pathfinding.NewEngine(d.grid,
			pathfinding.WithPriority(d.cfg.Priority),
			pathfinding.WithMaxExpansions(d.cfg.MaxExpansions),
			pathfinding.WithProfiler(d.profiler),
		)
		d.wg.Add(1)
		go d.work(ctx, engine)
	}
}

// Submit queues req, cancelling any search still running for the same agent.
func (d *Dispatcher) Submit(req Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	var state *agentState
	generation := uint64(0)
	if req.Agent != "" {
		state = d.agents[req.Agent]
		if state == nil {
			state = &agentState{}
			d.agents[req.Agent] = state
		}
		generation = state.generation + 1
	}

	ctx, cancel := context.WithCancel(d.root)
	select {
	case d.jobs <- job{req: req, generation: generation, ctx: ctx, cancel: cancel}:
	default:
		cancel()
		return fmt.Errorf("%w: %d requests waiting", ErrQueueFull, len(d.jobs))
	}

	if state != nil {
		if state.cancel != nil {
			state.cancel()
		}
		state.generation = generation
		state.cancel = cancel
	}
	return nil
}

// Drain delivers every result available right now, in arrival order, on the
// calling goroutine. Results superseded by a newer request for the same agent
// are dropped. It returns the number of callbacks invoked.
func (d *Dispatcher) Drain() int {
	delivered := 0
	for _, c := range d.results.drain(0) {
		if d.stale(c) {
			continue
		}
		if c.callback == nil {
			continue
		}
		if d.deliver(c) {
			delivered++
		}
	}
	return delivered
}

// Pending reports how many results wait for Drain.
func (d *Dispatcher) Pending() int {
	return d.results.len()
}

// Close stops accepting requests. Queued requests still run; Wait blocks
// until the workers are done.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.jobs)
	if !d.started {
		d.cancelRoot()
	}
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
	d.cancelRoot()
}

func (d *Dispatcher) stale(c completed) bool {
	if c.outcome.Agent == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.agents[c.outcome.Agent]
	return state == nil || state.generation != c.generation
}

func (d *Dispatcher) deliver(c completed) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("callback for agent %q panicked: %v", c.outcome.Agent, r)
			ok = false
		}
	}()
	c.callback(c.outcome)
	return true
}

func (d *Dispatcher) work(ctx context.Context, engine *pathfinding.Engine) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			d.run(engine, j)
		}
	}
}

func (d *Dispatcher) run(engine *pathfinding.Engine, j job) {
	defer j.cancel()
	if j.ctx.Err() != nil {
		// superseded before a worker picked it up
		return
	}

	outcome := Outcome{Agent: j.req.Agent}
	result, err := engine.Search(j.ctx, pathfinding.Request{
		Start:     j.req.Start,
		End:       j.req.End,
		Algorithm: j.req.Algorithm,
	})
	switch {
	case err != nil:
		outcome.Err = err
		if !errors.Is(err, context.Canceled) {
			d.logger.Printf("search for agent %q failed: %v", j.req.Agent, err)
		}
	case result.Success:
		outcome.Path = d.buildPath(result, j.req.Start)
	}
	outcome.Result = result

	d.results.enqueue(completed{
		outcome:    outcome,
		callback:   j.req.Callback,
		generation: j.generation,
	})
}

func (d *Dispatcher) buildPath(result pathfinding.Result, start orb.Point) *route.Path {
	waypoints := result.Waypoints()
	if d.cfg.Simplify {
		waypoints = route.Simplify(result.Path)
	}
	return route.New(waypoints, start, d.cfg.TurnDistance, d.cfg.StoppingDistance)
}
