package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
)

// ErrInvalidConfig reports a grid that cannot be built from the supplied spec.
var ErrInvalidConfig = errors.New("invalid grid configuration")

// DefaultObstaclePenalty is the base penalty of a blocked cell before smoothing.
const DefaultObstaclePenalty = 10

// Octile step costs, scaled by ten so diagonal moves stay integral.
const (
	AxisStep     = 10
	DiagonalStep = 14
)

// Priority selects which terrain weight drives movement cost.
type Priority int

const (
	ShortestDistance Priority = iota
	ShortestTime
	SmallestFuel
)

func (p Priority) String() string {
	switch p {
	case ShortestTime:
		return "time"
	case SmallestFuel:
		return "fuel"
	default:
		return "distance"
	}
}

// ParsePriority parses a textual planning priority label.
func ParsePriority(value string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "distance", "shortest-distance":
		return ShortestDistance, nil
	case "time", "shortest-time":
		return ShortestTime, nil
	case "fuel", "smallest-fuel":
		return SmallestFuel, nil
	default:
		return ShortestDistance, fmt.Errorf("unknown planning priority %q", value)
	}
}

// Coord is a grid coordinate.
type Coord struct {
	X int
	Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Cell is one grid unit. Cells never change after Build; search state is kept
// by the search engine.
type Cell struct {
	Coord
	World    orb.Point
	Walkable bool
	Terrain  int // index into Grid.Regions, -1 when unclassified
	Penalty  int // smoothed obstacle proximity penalty
	Index    int
}

// ObstacleTest reports whether a circle of the given radius around p collides
// with an obstacle.
type ObstacleTest func(p orb.Point, radius float64) bool

// TerrainRegion classifies cells and carries their cost weights.
type TerrainRegion struct {
	Name       string
	Contains   func(p orb.Point) bool
	TimeWeight int
	FuelWeight int
	Priority   int
}

// Spec holds everything Build needs.
type Spec struct {
	Bounds          orb.Bound
	CellRadius      float64
	Obstacle        ObstacleTest
	Regions         []TerrainRegion
	BlurRadius      int
	ObstaclePenalty int // 0 uses DefaultObstaclePenalty
}

// Grid is the discretized terrain.
type Grid struct {
	bounds   orb.Bound
	radius   float64
	diameter float64
	sizeX    int
	sizeY    int
	cells    []Cell
	regions  []TerrainRegion
}

// Build discretizes the spec's bounds into cells, classifies terrain and
// applies the optional penalty blur.
func Build(spec Spec) (*Grid, error) {
	width := spec.Bounds.Max.X() - spec.Bounds.Min.X()
	height := spec.Bounds.Max.Y() - spec.Bounds.Min.Y()
	if !(width > 0) || !(height > 0) {
		return nil, fmt.Errorf("%w: bounds %vx%v must have positive area", ErrInvalidConfig, width, height)
	}
	if !(spec.CellRadius > 0) {
		return nil, fmt.Errorf("%w: cell radius %v must be positive", ErrInvalidConfig, spec.CellRadius)
	}
	if spec.Obstacle == nil {
		return nil, fmt.Errorf("%w: obstacle test is required", ErrInvalidConfig)
	}
	if spec.BlurRadius < 0 {
		return nil, fmt.Errorf("%w: blur radius %d cannot be negative", ErrInvalidConfig, spec.BlurRadius)
	}
	if spec.ObstaclePenalty < 0 {
		return nil, fmt.Errorf("%w: obstacle penalty %d cannot be negative", ErrInvalidConfig, spec.ObstaclePenalty)
	}
	for i, region := range spec.Regions {
		if region.Contains == nil {
			return nil, fmt.Errorf("%w: region %d (%q) has no classification test", ErrInvalidConfig, i, region.Name)
		}
		if region.TimeWeight < 0 || region.FuelWeight < 0 {
			return nil, fmt.Errorf("%w: region %d (%q) has negative weights", ErrInvalidConfig, i, region.Name)
		}
	}

	diameter := spec.CellRadius * 2
	sizeX := int(math.Round(width / diameter))
	sizeY := int(math.Round(height / diameter))
	if sizeX < 1 || sizeY < 1 {
		return nil, fmt.Errorf("%w: cell diameter %v leaves a %dx%d grid", ErrInvalidConfig, diameter, sizeX, sizeY)
	}

	penalty := spec.ObstaclePenalty
	if penalty == 0 {
		penalty = DefaultObstaclePenalty
	}

	regions := append([]TerrainRegion(nil), spec.Regions...)
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Priority > regions[j].Priority
	})

	g := &Grid{
		bounds:   spec.Bounds,
		radius:   spec.CellRadius,
		diameter: diameter,
		sizeX:    sizeX,
		sizeY:    sizeY,
		cells:    make([]Cell, sizeX*sizeY),
		regions:  regions,
	}

	origin := spec.Bounds.Min
	for y := 0; y < sizeY; y++ {
		for x := 0; x < sizeX; x++ {
			world := orb.Point{
				origin.X() + float64(x)*diameter + spec.CellRadius,
				origin.Y() + float64(y)*diameter + spec.CellRadius,
			}
			collision := spec.Obstacle(world, spec.CellRadius)
			cell := Cell{
				Coord:    Coord{X: x, Y: y},
				World:    world,
				Walkable: !collision,
				Terrain:  -1,
				Index:    g.index(x, y),
			}
			for i, region := range regions {
				if region.Contains(world) {
					cell.Terrain = i
					break
				}
			}
			if collision {
				cell.Penalty = penalty
			}
			g.cells[cell.Index] = cell
		}
	}

	if spec.BlurRadius > 0 {
		g.blurPenalties(spec.BlurRadius)
	}
	return g, nil
}

func (g *Grid) index(x, y int) int {
	return y*g.sizeX + x
}

// Size returns the cell counts along each axis.
func (g *Grid) Size() (int, int) {
	return g.sizeX, g.sizeY
}

// Len is the total number of cells, the upper bound for any open set.
func (g *Grid) Len() int {
	return len(g.cells)
}

func (g *Grid) Bounds() orb.Bound {
	return g.bounds
}

func (g *Grid) Diameter() float64 {
	return g.diameter
}

// Regions returns the terrain table in classification order.
func (g *Grid) Regions() []TerrainRegion {
	return g.regions
}

// Cell returns the cell at grid coordinates x, y.
func (g *Grid) Cell(x, y int) (*Cell, bool) {
	if x < 0 || y < 0 || x >= g.sizeX || y >= g.sizeY {
		return nil, false
	}
	return &g.cells[g.index(x, y)], true
}

// CellByIndex returns the cell with the given dense index.
func (g *Grid) CellByIndex(i int) *Cell {
	return &g.cells[i]
}

// CellAt maps a world point to the cell containing it. Points outside the
// bounds resolve to the nearest edge cell.
func (g *Grid) CellAt(p orb.Point) *Cell {
	x := int(math.Floor((p.X() - g.bounds.Min.X()) / g.diameter))
	y := int(math.Floor((p.Y() - g.bounds.Min.Y()) / g.diameter))
	x = clampInt(x, 0, g.sizeX-1)
	y = clampInt(y, 0, g.sizeY-1)
	return &g.cells[g.index(x, y)]
}

// Neighbors returns the walkable 8-connected neighbours of c in a fixed order.
func (g *Grid) Neighbors(c *Cell) []*Cell {
	return g.AppendNeighbors(make([]*Cell, 0, 8), c)
}

// AppendNeighbors appends the walkable neighbours of c to dst.
func (g *Grid) AppendNeighbors(dst []*Cell, c *Cell) []*Cell {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n, ok := g.Cell(c.X+dx, c.Y+dy)
			if !ok || !n.Walkable {
				continue
			}
			dst = append(dst, n)
		}
	}
	return dst
}

// MovementCost is the per-cell weight for the planning priority plus the
// cell's smoothed penalty.
func (g *Grid) MovementCost(c *Cell, p Priority) int {
	weight := 1
	if c.Terrain >= 0 && c.Terrain < len(g.regions) {
		switch p {
		case ShortestTime:
			weight = g.regions[c.Terrain].TimeWeight
		case SmallestFuel:
			weight = g.regions[c.Terrain].FuelWeight
		}
	}
	return weight + c.Penalty
}

// Distance is the octile distance between two cells.
func Distance(a, b *Cell) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return DiagonalStep*dy + AxisStep*(dx-dy)
	}
	return DiagonalStep*dx + AxisStep*(dy-dx)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
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
