// Package dispatcher produces the lazy, finite, non-restartable sequence of
// work items a benchmark run must cover: one (persona, trait) pair per
// active trait for every persona in the dataset, plus a deterministic
// dual-scale sample, with already-completed triples filtered out so a
// resumed run never repeats work.
//
// The sequence is driven by a streaming persona source rather than loading
// the dataset into memory, so memory use stays bounded regardless of
// dataset size.
package dispatcher
