// Package route turns a searched cell chain into steering geometry: turn
// boundaries a mover crosses to advance between waypoints, and the index from
// which it should start slowing down.
package route

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"gridroute/internal/grid"
)

type Path struct {
	Waypoints        []orb.Point
	TurnBoundaries   []Line
	FinishLineIndex  int
	SlowDownIndex    int
	TurnDistance     float64
	StoppingDistance float64
}

// New places one turn boundary per waypoint. Boundary i sits turnDistance
// before waypoint i along the direction it is approached from; the last one
// sits on the final waypoint.
func New(waypoints []orb.Point, start orb.Point, turnDistance, stoppingDistance float64) *Path {
	p := &Path{
		Waypoints:        waypoints,
		TurnBoundaries:   make([]Line, len(waypoints)),
		FinishLineIndex:  len(waypoints) - 1,
		TurnDistance:     turnDistance,
		StoppingDistance: stoppingDistance,
	}

	previous := start
	for i, current := range waypoints {
		dir := normalize(sub(current, previous))
		boundary := current
		if i != p.FinishLineIndex {
			boundary = sub(current, scale(dir, turnDistance))
		}
		p.TurnBoundaries[i] = NewLine(boundary, sub(previous, scale(dir, turnDistance)))
		previous = boundary
	}

	remaining := 0.0
	for i := len(waypoints) - 1; i > 0; i-- {
		remaining += planar.Distance(waypoints[i], waypoints[i-1])
		if remaining > stoppingDistance {
			p.SlowDownIndex = i
			break
		}
	}
	return p
}

// SpeedPercent is the fraction of full speed for a mover at pos heading for
// waypoint index: full speed until SlowDownIndex, then proportional to the
// distance left to the finish line.
func (p *Path) SpeedPercent(pos orb.Point, index int) float64 {
	if len(p.TurnBoundaries) == 0 || index < p.SlowDownIndex || p.StoppingDistance <= 0 {
		return 1
	}
	left := p.TurnBoundaries[p.FinishLineIndex].DistanceFrom(pos)
	return math.Max(0, math.Min(1, left/p.StoppingDistance))
}

// Simplify keeps the cells where the grid direction changes, plus the final
// cell. The start cell is dropped; a mover is already there.
func Simplify(cells []*grid.Cell) []orb.Point {
	if len(cells) == 0 {
		return nil
	}
	var (
		points []orb.Point
		last   grid.Coord
		have   bool
	)
	for i := 1; i < len(cells); i++ {
		dir := grid.Coord{X: cells[i-1].X - cells[i].X, Y: cells[i-1].Y - cells[i].Y}
		if !have || dir != last {
			points = append(points, cells[i].World)
		}
		last, have = dir, true
	}
	final := cells[len(cells)-1].World
	if len(points) == 0 || points[len(points)-1] != final {
		points = append(points, final)
	}
	return points
}

// Length is the summed Euclidean length of the polyline.
func Length(points []orb.Point) float64 {
	return planar.Length(orb.LineString(points))
}
