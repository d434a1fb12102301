package postprocess

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"github.com/ltreme/biasbench/internal/errkind"
	"github.com/ltreme/biasbench/internal/store"
)

// leadingDigitDot matches the fallback token format "<digit>." at the start
// of the (trimmed) response, for models that ignore the JSON-only
// instruction and answer in prose ("4. Die Person wirkt...").
var leadingDigitDot = regexp.MustCompile(`^(\d)\s*\.`)

// Process extracts and normalizes a rating from in.RawText, classifying the
// failure mode when extraction or validation doesn't succeed.
func Process(in Input) Outcome {
	if strings.HasPrefix(in.RawText, "[error ") {
		return Outcome{Kind: errkind.TransportError}
	}

	raw, rationale, found := extractFromJSON(in.RawText, in.IncludeRationale)
	if !found {
		raw, found = extractLeadingDigit(in.RawText)
	}
	if !found {
		return Outcome{Kind: errkind.ParseError}
	}
	if raw < 1 || raw > 5 {
		return Outcome{Kind: errkind.OutOfRange}
	}
	if in.IncludeRationale && rationale == "" {
		return Outcome{Kind: errkind.SchemaError}
	}

	normalized := raw
	if in.ScaleOrder == store.ScaleOrderRev {
		normalized = 6 - raw
	}

	return Outcome{Rating: normalized, RatingRaw: raw, Rationale: rationale}
}

// extractFromJSON locates the first well-formed JSON object in text and
// reads its "rating" (and, if requested, "rationale") fields. gabs handles
// objects embedded in surrounding prose — models frequently wrap the JSON
// in a sentence despite being told not to.
func extractFromJSON(text string, wantRationale bool) (rating int, rationale string, found bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return 0, "", false
	}
	var obj map[string]any
	for json.NewDecoder(strings.NewReader(text[start:])).Decode(&obj) != nil {
		next := strings.IndexByte(text[start+1:], '{')
		if next == -1 {
			return 0, "", false
		}
		start += next + 1
	}
	parsed := gabs.Wrap(obj)

	ratingVal := parsed.Path("rating").Data()
	n, ok := toInt(ratingVal)
	if !ok {
		return 0, "", false
	}

	if wantRationale {
		if r, ok := parsed.Path("rationale").Data().(string); ok {
			rationale = r
		}
	}
	return n, rationale, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func extractLeadingDigit(text string) (int, bool) {
	trimmed := strings.TrimSpace(text)
	match := leadingDigitDot.FindStringSubmatch(trimmed)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
