// Package errkind is the closed set of error classifications shared by
// postprocess, persister, pipeline, and queue, so a FailLog row or a task's
// error column always carries one of a known set of values rather than an
// arbitrary error string.
package errkind

// Kind is a closed string enum. The zero value is not a valid Kind — use
// one of the named constants.
type Kind string

const (
	// From the post-processor (C6).
	ParseError   Kind = "parse_error"
	OutOfRange   Kind = "out_of_range"
	SchemaError  Kind = "schema_error"

	// From the gateway, surfaced through the post-processor.
	TransportError Kind = "transport_error"
	Timeout        Kind = "timeout"

	// From the persister (C7), against the underlying store. Timeout (above)
	// doubles as the DB-timeout classification — the retry policy is
	// identical either way.
	Deadlock      Kind = "deadlock"
	Serialization Kind = "serialization"

	// From the pipeline (C8).
	MaxAttemptsExceeded Kind = "max_attempts_exceeded"
	Cancelled           Kind = "cancelled"

	// From the queue executor (C11).
	DependencyFailed    Kind = "dependency failed"
	DependencyCancelled Kind = "dependency cancelled"
	Orphan              Kind = "orphan"

	// From benchmark-run setup (C10), base-URL discovery failure.
	GatewayUnreachable Kind = "gateway_unreachable"
)

var known = map[Kind]bool{
	ParseError: true, OutOfRange: true, SchemaError: true,
	TransportError: true, Timeout: true,
	Deadlock: true, Serialization: true,
	MaxAttemptsExceeded: true, Cancelled: true,
	DependencyFailed: true, DependencyCancelled: true, Orphan: true,
	GatewayUnreachable: true,
}

// Valid reports whether k is one of the known classifications.
func (k Kind) Valid() bool {
	return known[k]
}

// String satisfies fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}
