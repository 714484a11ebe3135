package grid

import "math"

// blurPenalties spreads penalties with a separable box blur of kernel size
// 2*radius+1. Samples past the edges clamp to the border cell.
func (g *Grid) blurPenalties(radius int) {
	kernel := radius*2 + 1
	area := float64(kernel * kernel)

	horizontal := make([]int, len(g.cells))
	for y := 0; y < g.sizeY; y++ {
		sum := 0
		for k := -radius; k <= radius; k++ {
			sum += g.cells[g.index(clampInt(k, 0, g.sizeX-1), y)].Penalty
		}
		horizontal[g.index(0, y)] = sum
		for x := 1; x < g.sizeX; x++ {
			remove := clampInt(x-radius-1, 0, g.sizeX-1)
			add := clampInt(x+radius, 0, g.sizeX-1)
			sum += g.cells[g.index(add, y)].Penalty - g.cells[g.index(remove, y)].Penalty
			horizontal[g.index(x, y)] = sum
		}
	}

	for x := 0; x < g.sizeX; x++ {
		sum := 0
		for k := -radius; k <= radius; k++ {
			sum += horizontal[g.index(x, clampInt(k, 0, g.sizeY-1))]
		}
		g.cells[g.index(x, 0)].Penalty = int(math.Round(float64(sum) / area))
		for y := 1; y < g.sizeY; y++ {
			remove := clampInt(y-radius-1, 0, g.sizeY-1)
			add := clampInt(y+radius, 0, g.sizeY-1)
			sum += horizontal[g.index(x, add)] - horizontal[g.index(x, remove)]
			g.cells[g.index(x, y)].Penalty = int(math.Round(float64(sum) / area))
		}
	}
}
