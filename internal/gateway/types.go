package gateway

// PromptSpec is one unit of work submitted to the gateway: a rendered
// prompt plus the bookkeeping needed to route its result back to the
// caller.
type PromptSpec struct {
	ID            string
	PromptText    string
	MaxNewTokens  int
}

// Result is what a single PromptSpec yields: the raw model output plus
// latency and token accounting, or an error if the request ultimately
// failed.
type Result struct {
	ID                string
	RawText           string
	GenTimeMs         int
	PromptTokens      int
	CompletionTokens  int
	TotalTokens       int
	Err               error
}

// Config configures one Client instance. Outbound concurrency is not
// bounded here — the caller (pipeline.Engine) owns the sliding window via
// its own Concurrency setting, since it also needs to interleave rendering
// and post-processing with the request itself.
type Config struct {
	BaseURL         string
	Model           string
	APIKey          string
	TimeoutSeconds  float64
	MaxNewTokensCap int
	Temperature     float64
	QPS             float64 // 0 disables outbound rate limiting
}
