// Package store provides the persistent SQLite-backed source of truth for
// datasets, personas, traits, benchmark runs, results, the failure log, and
// the task queue.
//
// # Overview
//
// store implements the data model described in the benchmark harness design:
// many readers, serialized writers per run, and no long-held transactions —
// every batch write is its own transaction. Schema changes are applied with
// golang-migrate against an embedded set of migration files, so the schema
// version travels with the binary.
//
// # Concurrency
//
// A single *sql.DB connection pool is shared by all callers. Reads are
// unsynchronized (SQLite itself serializes via WAL); writers that need
// exactly-once semantics under retry (the persister) add their own
// process-wide mutex on top.
//
// # Usage
//
//	st, err := store.Open(ctx, "./bias-bench.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	run, err := st.CreateBenchmarkRun(ctx, store.NewBenchmarkRun{...})
package store
