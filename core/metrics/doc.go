// Package metrics defines the sinks that record dispatch outcomes for
// observability. Sinks such as PromSink and InfluxSink (infra/metrics) are
// created from configuration through NewMetricsSink, which combines several
// configured sinks into a MultiSink. Optional capabilities, like recording
// round summaries, are expressed as separate interfaces and detected with
// type assertions.
package metrics
