// Package promptlog writes an optional JSON-Lines side channel of every
// LLM call: prompt, response, and outcome. It's a side channel only —
// write failures are logged and swallowed rather than propagated, per
// the rotating-log's "failures never propagate" contract.
package promptlog
