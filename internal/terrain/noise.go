// Package terrain synthesizes repeatable obstacle and region layouts from
// hashed value noise, for demo maps and load profiles.
package terrain

import (
	"math"

	"github.com/paulmach/orb"

	"gridroute/internal/config"
	"gridroute/internal/grid"
)

// Sampler returns a noise value in [-1, 1] for a world point.
type Sampler interface {
	Sample(p orb.Point) float64
}

// Field is fractal value noise over the plane.
type Field struct {
	cfg  config.TerrainConfig
	seed int64
}

func NewField(cfg config.TerrainConfig) *Field {
	return &Field{cfg: cfg, seed: cfg.Seed}
}

func (f *Field) Sample(p orb.Point) float64 {
	return f.fractalNoise(p.X(), p.Y())
}

func (f *Field) fractalNoise(x, y float64) float64 {
	frequency := f.cfg.Frequency
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < f.cfg.Octaves; i++ {
		noise := f.valueNoise(x*frequency, y*frequency)
		noiseSum += noise * amplitude
		maxAmplitude += amplitude
		amplitude *= f.cfg.Persistence
		frequency *= f.cfg.Lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}

func (f *Field) valueNoise(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))

	sx := smooth(x - float64(x0))
	sy := smooth(y - float64(y0))

	bottom := lerp(random2D(x0, y0, f.seed), random2D(x0+1, y0, f.seed), sx)
	top := lerp(random2D(x0, y0+1, f.seed), random2D(x0+1, y0+1, f.seed), sx)
	return lerp(bottom, top, sy)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func random2D(x, y int, seed int64) float64 {
	return float64(hash3(x, y, int(seed))&0xFFFF)/0x8000 - 1.0
}

func hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// ObstacleTest blocks every point whose noise reaches threshold. The radius
// is ignored; cells are sampled at their centre.
func ObstacleTest(s Sampler, threshold float64) grid.ObstacleTest {
	return func(p orb.Point, _ float64) bool {
		return s.Sample(p) >= threshold
	}
}

// Regions builds a region for every definition that carries a noise band.
// Definitions without one are classified by rectangles elsewhere.
func Regions(s Sampler, defs []config.RegionConfig) []grid.TerrainRegion {
	var regions []grid.TerrainRegion
	for _, def := range defs {
		if def.MaxNoise <= def.MinNoise {
			continue
		}
		low, high := def.MinNoise, def.MaxNoise
		regions = append(regions, grid.TerrainRegion{
			Name: def.Name,
			Contains: func(p orb.Point) bool {
				v := s.Sample(p)
				return v >= low && v < high
			},
			TimeWeight: def.TimeWeight,
			FuelWeight: def.FuelWeight,
			Priority:   def.Priority,
		})
	}
	return regions
}

// Decorate adds noise obstacles and noise-band regions to spec. Existing
// obstacles keep blocking.
func Decorate(spec grid.Spec, s Sampler, threshold float64, defs []config.RegionConfig) grid.Spec {
	base := spec.Obstacle
	noise := ObstacleTest(s, threshold)
	spec.Obstacle = func(p orb.Point, radius float64) bool {
		if base != nil && base(p, radius) {
			return true
		}
		return noise(p, radius)
	}
	spec.Regions = append(append([]grid.TerrainRegion(nil), spec.Regions...), Regions(s, defs)...)
	return spec
}
