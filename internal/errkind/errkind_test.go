package errkind

import "testing"

func TestValid_KnownKinds(t *testing.T) {
	for _, k := range []Kind{ParseError, OutOfRange, SchemaError, TransportError,
		Timeout, Deadlock, Serialization, MaxAttemptsExceeded, Cancelled,
		DependencyFailed, DependencyCancelled, Orphan, GatewayUnreachable} {
		if !k.Valid() {
			t.Errorf("expected %s to be valid", k)
		}
	}
}

func TestValid_RejectsUnknownKind(t *testing.T) {
	if Kind("not_a_real_kind").Valid() {
		t.Error("expected unknown kind to be invalid")
	}
}
