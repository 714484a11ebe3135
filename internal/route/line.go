package route

import (
	"math"

	"github.com/paulmach/orb"
)

// Line is an infinite line crossing Point, perpendicular to Direction. A
// mover approaching from the side it was built with crosses it once it ends
// up on the other side.
type Line struct {
	Point     orb.Point
	Direction orb.Point // unit vector pointing from the approach side across the line
}

// NewLine builds the line through onLine whose approach side contains
// approach.
func NewLine(onLine, approach orb.Point) Line {
	return Line{
		Point:     onLine,
		Direction: normalize(sub(onLine, approach)),
	}
}

// HasCrossed reports whether p lies strictly beyond the line. A degenerate
// line, built from two equal points, counts as crossed.
func (l Line) HasCrossed(p orb.Point) bool {
	if l.Direction == (orb.Point{}) {
		return true
	}
	return dot(sub(p, l.Point), l.Direction) > 0
}

// DistanceFrom is the perpendicular distance from p to the line.
func (l Line) DistanceFrom(p orb.Point) float64 {
	if l.Direction == (orb.Point{}) {
		return math.Hypot(p.X()-l.Point.X(), p.Y()-l.Point.Y())
	}
	return math.Abs(dot(sub(p, l.Point), l.Direction))
}

// Segment returns the stretch of the line within halfWidth of Point.
func (l Line) Segment(halfWidth float64) orb.LineString {
	along := orb.Point{-l.Direction.Y(), l.Direction.X()}
	return orb.LineString{
		add(l.Point, scale(along, -halfWidth)),
		add(l.Point, scale(along, halfWidth)),
	}
}

func sub(a, b orb.Point) orb.Point {
	return orb.Point{a.X() - b.X(), a.Y() - b.Y()}
}

func add(a, b orb.Point) orb.Point {
	return orb.Point{a.X() + b.X(), a.Y() + b.Y()}
}

func scale(p orb.Point, s float64) orb.Point {
	return orb.Point{p.X() * s, p.Y() * s}
}

func dot(a, b orb.Point) float64 {
	return a.X()*b.X() + a.Y()*b.Y()
}

func normalize(p orb.Point) orb.Point {
	length := math.Hypot(p.X(), p.Y())
	if length == 0 {
		return orb.Point{}
	}
	return orb.Point{p.X() / length, p.Y() / length}
}
