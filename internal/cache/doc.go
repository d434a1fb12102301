// Package cache provides a content-addressed cache of derived benchmark
// aggregates (per-trait summaries, dataset comparisons, trend series).
//
// Results are addressed by (run_id, kind, params, row_count): row_count lets
// a cache entry self-invalidate the instant new results land for the run,
// without the cache needing to know anything about what changed. A small
// in-memory LRU+TTL layer fronts the persisted store so repeated reads
// within a short window never touch SQLite at all; the persisted layer
// means a process restart doesn't cost every run its warm cache.
package cache
