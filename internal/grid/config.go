package grid

import (
	"fmt"

	"github.com/paulmach/orb"

	"gridroute/internal/config"
)

// BoundFromConfig converts a configured rectangle to an orb.Bound.
func BoundFromConfig(r config.RectConfig) orb.Bound {
	return orb.Bound{Min: orb.Point{r.MinX, r.MinY}, Max: orb.Point{r.MaxX, r.MaxY}}
}

// SpecFromConfig builds a Spec with rectangle obstacles and rectangle
// regions. Regions without rectangles are left out; they describe noise
// bands and are added by the terrain package.
func SpecFromConfig(cfg config.GridConfig) (Spec, error) {
	obstacles := make([]orb.Bound, 0, len(cfg.Obstacles))
	for _, r := range cfg.Obstacles {
		obstacles = append(obstacles, BoundFromConfig(r))
	}
	index, err := NewRectIndex(obstacles)
	if err != nil {
		return Spec{}, fmt.Errorf("index obstacles: %w", err)
	}

	spec := Spec{
		Bounds:          BoundFromConfig(cfg.Bounds),
		CellRadius:      cfg.CellRadius,
		Obstacle:        index.ObstacleTest(),
		BlurRadius:      cfg.BlurRadius,
		ObstaclePenalty: cfg.ObstaclePenalty,
	}
	for _, region := range cfg.Regions {
		if len(region.Rects) == 0 {
			continue
		}
		rects := make([]orb.Bound, 0, len(region.Rects))
		for _, r := range region.Rects {
			rects = append(rects, BoundFromConfig(r))
		}
		regionIndex, err := NewRectIndex(rects)
		if err != nil {
			return Spec{}, fmt.Errorf("index region %q: %w", region.Name, err)
		}
		spec.Regions = append(spec.Regions, TerrainRegion{
			Name:       region.Name,
			Contains:   regionIndex.Contains,
			TimeWeight: region.TimeWeight,
			FuelWeight: region.FuelWeight,
			Priority:   region.Priority,
		})
	}
	return spec, nil
}

// FromConfig builds a grid from the rectangle-based parts of cfg.
func FromConfig(cfg config.GridConfig) (*Grid, error) {
	spec, err := SpecFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return Build(spec)
}
