package gateway

import "context"

// FakeClient is a deterministic, in-process stand-in for Client, used by
// integration tests (and local dry runs) that don't want to talk to a real
// model server. Every request gets the same canned rating response.
type FakeClient struct {
	// Payload is the raw text every Complete call returns. Defaults to a
	// well-formed rating-3-with-rationale JSON object.
	Payload string
	// GenTimeMs is the synthetic latency reported on every result.
	GenTimeMs int
}

// NewFakeClient builds a FakeClient with the teacher-style default payload.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Payload:   `{"rating": 3, "rationale": "ok"}`,
		GenTimeMs: 1,
	}
}

// Complete returns the canned payload for every spec, immediately.
func (f *FakeClient) Complete(ctx context.Context, spec PromptSpec) Result {
	return Result{
		ID:        spec.ID,
		RawText:   f.Payload,
		GenTimeMs: f.GenTimeMs,
	}
}
