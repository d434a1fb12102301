// Package pipeline streams work items through the gateway and
// post-processor and hands the outcome to the persister, retrying failed
// attempts in the same stream rather than as a separate pass.
//
// Items flow through one continuous sliding window of at most Concurrency
// outstanding requests: each completion frees a slot, which is refilled by
// that item's retry (if it failed under its attempt budget) or by the next
// item from the source. Successes are persisted every batch_size results
// and at the end. Cancellation is checked on every pass of the loop; once
// seen, no new items are taken, and in-flight requests are never aborted —
// they are drained and their outcomes recorded.
package pipeline
