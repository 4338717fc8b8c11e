// Package metrics defines the sink interfaces used to observe the city
// simulation and the grid-edge environment. Every sink implements
// MetricsSink; richer sinks also implement the optional recorder interfaces
// and callers discover them with type assertions. Sinks are built from
// configuration through the registry and combined with NewMultiSink.
package metrics
