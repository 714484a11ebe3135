package terrain

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"

	"github.com/paulmach/orb"

	"gridroute/internal/config"
	"gridroute/internal/grid"
)

// Baked holds one noise sample per cell centre of a grid layout, so grid
// construction evaluates the fractal only once per cell.
type Baked struct {
	min      orb.Point
	diameter float64
	sizeX    int
	sizeY    int
	values   []float64
}

// Bake samples s at every cell centre of the layout described by bounds and
// cellRadius, spreading rows over workers goroutines. workers <= 0 uses two
// per CPU.
func Bake(ctx context.Context, s Sampler, bounds orb.Bound, cellRadius float64, workers int, logger *log.Logger) (*Baked, error) {
	if !(cellRadius > 0) {
		return nil, fmt.Errorf("%w: cell radius %v must be positive", grid.ErrInvalidConfig, cellRadius)
	}
	diameter := cellRadius * 2
	sizeX := int(math.Round((bounds.Max.X() - bounds.Min.X()) / diameter))
	sizeY := int(math.Round((bounds.Max.Y() - bounds.Min.Y()) / diameter))
	if sizeX < 1 || sizeY < 1 {
		return nil, fmt.Errorf("%w: cell diameter %v leaves a %dx%d layout", grid.ErrInvalidConfig, diameter, sizeX, sizeY)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "terrain ", log.LstdFlags|log.Lmicroseconds)
	}

	b := &Baked{
		min:      bounds.Min,
		diameter: diameter,
		sizeX:    sizeX,
		sizeY:    sizeY,
		values:   make([]float64, sizeX*sizeY),
	}

	workers = workerCount(workers, sizeY)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan int, workers)
	done := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				if err := ctx.Err(); err != nil {
					select {
					case done <- err:
					default:
					}
					return
				}
				// rows are disjoint, so workers never write the same slot
				for x := 0; x < sizeX; x++ {
					b.values[y*sizeX+x] = s.Sample(b.center(x, y))
				}
				select {
				case done <- nil:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	go func() {
		defer close(rows)
		for y := 0; y < sizeY; y++ {
			select {
			case <-ctx.Done():
				return
			case rows <- y:
			}
		}
	}()

	finished := 0
	nextLogPercent := 25
	for err := range done {
		if err != nil {
			cancel()
			return nil, err
		}
		finished++
		if progress := finished * 100 / sizeY; progress >= nextLogPercent {
			logger.Printf("bake %dx%d progress: %d%%", sizeX, sizeY, progress)
			nextLogPercent = (progress/25 + 1) * 25
		}
	}
	if finished != sizeY {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("bake stopped after %d of %d rows", finished, sizeY)
	}
	return b, nil
}

func (b *Baked) center(x, y int) orb.Point {
	return orb.Point{
		b.min.X() + float64(x)*b.diameter + b.diameter/2,
		b.min.Y() + float64(y)*b.diameter + b.diameter/2,
	}
}

// Sample returns the value baked for the cell containing p.
func (b *Baked) Sample(p orb.Point) float64 {
	x := clampInt(int(math.Floor((p.X()-b.min.X())/b.diameter)), 0, b.sizeX-1)
	y := clampInt(int(math.Floor((p.Y()-b.min.Y())/b.diameter)), 0, b.sizeY-1)
	return b.values[y*b.sizeX+x]
}

// SpecFromConfig is grid.SpecFromConfig plus noise obstacles and noise-band
// regions baked over the configured layout.
func SpecFromConfig(ctx context.Context, cfg *config.Config, workers int, logger *log.Logger) (grid.Spec, error) {
	spec, err := grid.SpecFromConfig(cfg.Grid)
	if err != nil {
		return grid.Spec{}, err
	}
	baked, err := Bake(ctx, NewField(cfg.Terrain), spec.Bounds, spec.CellRadius, workers, logger)
	if err != nil {
		return grid.Spec{}, fmt.Errorf("bake terrain: %w", err)
	}
	return Decorate(spec, baked, cfg.Terrain.ObstacleThreshold, cfg.Grid.Regions), nil
}

func workerCount(requested, rows int) int {
	workers := requested
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0) * 2
	}
	if workers > rows {
		workers = rows
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
