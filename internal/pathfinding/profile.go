package pathfinding

import (
	"context"
	"sync/atomic"
	"time"
)

// SearchProfiler captures instrumentation hooks for grid searches.
type SearchProfiler interface {
	RecordNodeExpanded()
	RecordNeighborGeneration(count int)
	RecordHeuristicEvaluation()
	RecordQueueUpdate()
	RecordSearch(duration time.Duration, found bool)
}

// SearchMetrics accumulates profiling counters for Engine searches. It is safe
// to share between engines running on different goroutines.
type SearchMetrics struct {
	searches             atomic.Int64
	searchesFound        atomic.Int64
	searchTime           atomic.Int64
	nodesExpanded        atomic.Int64
	neighborGenerations  atomic.Int64
	neighborCount        atomic.Int64
	heuristicEvaluations atomic.Int64
	queueUpdates         atomic.Int64
}

// MetricsSnapshot captures a point-in-time copy of search metrics.
type MetricsSnapshot struct {
	Searches             int64
	SearchesFound        int64
	SearchTime           time.Duration
	NodesExpanded        int64
	NeighborGenerations  int64
	NeighborCount        int64
	HeuristicEvaluations int64
	QueueUpdates         int64
}

// Profiler returns a SearchProfiler backed by this metric set.
func (m *SearchMetrics) Profiler() SearchProfiler {
	if m == nil {
		return nil
	}
	return (*metricsProfiler)(m)
}

// Reset zeroes all counters.
func (m *SearchMetrics) Reset() {
	if m == nil {
		return
	}
	m.searches.Store(0)
	m.searchesFound.Store(0)
	m.searchTime.Store(0)
	m.nodesExpanded.Store(0)
	m.neighborGenerations.Store(0)
	m.neighborCount.Store(0)
	m.heuristicEvaluations.Store(0)
	m.queueUpdates.Store(0)
}

// Snapshot captures the current counter values.
func (m *SearchMetrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Searches:             m.searches.Load(),
		SearchesFound:        m.searchesFound.Load(),
		SearchTime:           time.Duration(m.searchTime.Load()),
		NodesExpanded:        m.nodesExpanded.Load(),
		NeighborGenerations:  m.neighborGenerations.Load(),
		NeighborCount:        m.neighborCount.Load(),
		HeuristicEvaluations: m.heuristicEvaluations.Load(),
		QueueUpdates:         m.queueUpdates.Load(),
	}
}

type metricsProfiler SearchMetrics

func (m *metricsProfiler) RecordNodeExpanded() {
	(*SearchMetrics)(m).nodesExpanded.Add(1)
}

func (m *metricsProfiler) RecordNeighborGeneration(count int) {
	metrics := (*SearchMetrics)(m)
	metrics.neighborGenerations.Add(1)
	metrics.neighborCount.Add(int64(count))
}

func (m *metricsProfiler) RecordHeuristicEvaluation() {
	(*SearchMetrics)(m).heuristicEvaluations.Add(1)
}

func (m *metricsProfiler) RecordQueueUpdate() {
	(*SearchMetrics)(m).queueUpdates.Add(1)
}

func (m *metricsProfiler) RecordSearch(duration time.Duration, found bool) {
	metrics := (*SearchMetrics)(m)
	metrics.searches.Add(1)
	metrics.searchTime.Add(duration.Nanoseconds())
	if found {
		metrics.searchesFound.Add(1)
	}
}

type profilerContextKey struct{}

// ContextWithProfiler returns a context whose searches report to profiler
// unless the engine was built with its own.
func ContextWithProfiler(ctx context.Context, profiler SearchProfiler) context.Context {
	if profiler == nil {
		return ctx
	}
	return context.WithValue(ctx, profilerContextKey{}, profiler)
}

func profilerFromContext(ctx context.Context) SearchProfiler {
	if ctx == nil {
		return nil
	}
	if profiler, ok := ctx.Value(profilerContextKey{}).(SearchProfiler); ok {
		return profiler
	}
	return nil
}
