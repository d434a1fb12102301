// Package persister writes benchmark results to the store in idempotent
// batches, serialized through a single process-wide lock so concurrent
// pipeline workers never hand SQLite two result writers at once, and
// retries the handful of transient error kinds a batch insert can hit
// under contention. Fail-log entries are written one at a time, outside
// that lock and without retry.
//
// Progress counts are tracked in memory, independent of the row count a
// COUNT(*) would report, so a caller that wants "how many results has this
// run produced" doesn't pay for a query on every batch.
package persister
