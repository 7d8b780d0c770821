package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseValue extracts a numeric value from an inbound payload.
//
// The telemetry source is not consistent about encoding, so several
// shapes are accepted:
//
//   - bare decimal text:  "123.4", "  42 "
//   - JSON number:        "7.5"
//   - JSON string:        "\"55.5\""
//   - JSON object:        {"value": 7}
//
// Anything else is a parse error, as are non-finite values ("NaN",
// "Inf"): a NaN sample would poison every statistic in its window and
// cannot be encoded into the combined JSON document. Callers drop the
// message with a diagnostic; a bad payload on a numeric topic never
// crashes the handler and never propagates.
func ParseValue(payload []byte) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, fmt.Errorf("%w: empty payload", ErrUnparseablePayload)
	}

	// Bare decimal covers JSON numbers too.
	if v, err := strconv.ParseFloat(text, 64); err == nil && isFinite(v) {
		return v, nil
	}

	// JSON object with a "value" field. JSON numbers cannot encode NaN
	// or infinities, so no finiteness check is needed here.
	var obj struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Value != nil {
		return *obj.Value, nil
	}

	// JSON string holding a number.
	var str string
	if err := json.Unmarshal(payload, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil && isFinite(v) {
			return v, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnparseablePayload, text)
}

// isFinite reports whether v is a usable sample value.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
