package pathfinding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsFromContextProfiler(t *testing.T) {
	g := newTestGrid(t, openRows(5, 5))
	engine := NewEngine(g)
	metrics := &SearchMetrics{}
	ctx := ContextWithProfiler(context.Background(), metrics.Profiler())

	result, err := engine.SearchCells(ctx, cellAt(t, g, 0, 0), cellAt(t, g, 4, 4), AStar)
	require.NoError(t, err)
	require.True(t, result.Success)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Searches)
	assert.Equal(t, int64(1), snap.SearchesFound)
	assert.Equal(t, int64(5), snap.NodesExpanded)
	assert.Equal(t, int64(4), snap.NeighborGenerations)
	assert.Equal(t, int64(18), snap.HeuristicEvaluations, "every batch entry evaluates h once")
	assert.Zero(t, snap.QueueUpdates)

	metrics.Reset()
	assert.Equal(t, MetricsSnapshot{}, metrics.Snapshot())
}

func TestEngineProfilerTakesPrecedence(t *testing.T) {
	g := newTestGrid(t, []string{
		"..#..",
		"..#..",
	})
	own := &SearchMetrics{}
	fromContext := &SearchMetrics{}
	engine := NewEngine(g, WithProfiler(own.Profiler()))
	ctx := ContextWithProfiler(context.Background(), fromContext.Profiler())

	result, err := engine.SearchCells(ctx, cellAt(t, g, 0, 0), cellAt(t, g, 4, 0), UniformCost)
	require.NoError(t, err)
	assert.False(t, result.Success)

	assert.Equal(t, int64(1), own.Snapshot().Searches)
	assert.Zero(t, own.Snapshot().SearchesFound)
	assert.Zero(t, fromContext.Snapshot().Searches)
}

func TestNilMetricsAreInert(t *testing.T) {
	var metrics *SearchMetrics
	assert.Nil(t, metrics.Profiler())
	assert.Equal(t, MetricsSnapshot{}, metrics.Snapshot())
	metrics.Reset()

	ctx := context.Background()
	assert.Equal(t, ctx, ContextWithProfiler(ctx, nil))
}
