// Package postprocess extracts a normalized Likert rating from raw LLM
// output and classifies failures when extraction isn't possible.
//
// Extraction tries, in order: a well-formed JSON object's "rating" field,
// then a leading "<digit>." token as a fallback for servers or models that
// don't respect the JSON-only instruction. The rating stored downstream is
// always on the in-order scale — a "rev" scale_order result is normalized
// with 6-raw before it's handed back, so a trait's rating column means the
// same thing regardless of which scale order produced it.
package postprocess
