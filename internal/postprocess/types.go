package postprocess

import (
	"github.com/ltreme/biasbench/internal/errkind"
	"github.com/ltreme/biasbench/internal/store"
)

// Outcome is the result of post-processing one piece of raw model output.
// A successful extraction carries an empty Kind; a failed one carries the
// classification and zero rating fields.
type Outcome struct {
	Rating    int // normalized, in-order scale, 1..5
	RatingRaw int // as parsed, before scale-order normalization
	Rationale string
	Kind      errkind.Kind // empty on success
}

// Ok reports whether extraction succeeded.
func (o Outcome) Ok() bool {
	return o.Kind == errkind.Kind("")
}

// Input bundles everything the processor needs to classify and normalize
// one piece of raw model output.
type Input struct {
	RawText          string
	ScaleOrder       store.ScaleOrder
	IncludeRationale bool
}
