// Package cmd wires the Cobra command tree for benchctl: submitting queue
// tasks, running the worker loop, and inspecting progress. Grounded on the
// teacher's internal/cmd (cobra + viper + slog root command, persistent
// flags bound at init time) generalized from "run benchmarks from a YAML
// file" to "submit/drive tasks against the SQLite-backed queue".
package cmd
