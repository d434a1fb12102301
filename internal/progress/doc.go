// Package progress tracks in-flight benchmark run progress in memory.
//
// A run's done/total counters are expensive to recompute (a DISTINCT count
// over benchmark_results, or a persona × trait product over a dataset), so
// the registry caches them and only refreshes on a timer: the done count at
// most every 30 seconds, the total at most every 60. Callers that need a
// cheap, frequent progress read (a status endpoint polled once a second) get
// the cached snapshot; the registry itself decides when a refresh is due.
package progress
