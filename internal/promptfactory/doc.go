// Package promptfactory renders a deterministic prompt for one
// (persona, trait, scale_order) work item.
//
// Rendering is a pure function of its inputs: no timestamps, no
// randomness, no hidden state, so identical inputs always yield an
// identical PromptSpec (the property the post-processor and pipeline rely
// on when comparing retried attempts).
package promptfactory
