// Package benchrun wires the dispatcher, pipeline engine, and gateway
// together to execute one benchmark run end to end, mirroring the
// original implementation's execute_benchmark_run: load the run, stream
// work through the pipeline while a background poller keeps the progress
// registry warm, then classify the terminal status.
package benchrun
