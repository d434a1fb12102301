// Package gateway is the OpenAI-compatible HTTP client used to reach an
// LLM inference server (vLLM or compatible) during a benchmark run.
//
// # Overview
//
// Client issues /v1/completions requests, falling back to
// /v1/chat/completions when the server doesn't support the former (404/405,
// or a response with no usable choices). Client itself makes one request at
// a time per call; pipeline.Engine is what drives many Complete calls
// through a bounded concurrent sliding window, so rendering, the request,
// and post-processing all interleave rather than completing in lockstep
// batches.
//
// # Discovery
//
// DiscoverBaseURL probes a small set of candidate base URLs (preferred
// config value, its Docker-bridge-normalized form, an environment override,
// and a loopback/host.docker.internal fallback pair) against /v1/models,
// accepting the first one that's reachable and either lists the requested
// model or returns an empty model list.
package gateway
