package detection

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
	"github.com/garyellow/scamguard-linebot-go/internal/sliceutil"
)

// ParseLLMResponse decodes an LLM reply of the form
// {"stage": 3, "labels": ["urgency", "crisis"]}.
//
// The reply is first decoded as-is; failing that, the first balanced JSON
// object found in the text (prose, markdown fences) is used. Returns an error
// wrapping ErrMalformedResponse only when no JSON object can be decoded.
// Invalid fields leave the matching Has* flag unset.
func ParseLLMResponse(raw string) (Classification, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return Classification{}, err
	}

	var c Classification
	if v, ok := obj["stage"]; ok {
		c.Stage, c.HasStage = parseStage(v)
	}
	if v, ok := obj["labels"]; ok {
		c.Labels, c.HasLabels = parseLabels(v)
	}
	return c, nil
}

func decodeObject(raw string) (map[string]json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty reply", domerrors.ErrMalformedResponse)
	}

	if obj, ok := tryObject(raw); ok {
		return obj, nil
	}

	for start := strings.IndexByte(raw, '{'); start >= 0; {
		if end := matchBrace(raw, start); end > start {
			if obj, ok := tryObject(raw[start : end+1]); ok {
				return obj, nil
			}
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, fmt.Errorf("%w: no JSON object in reply", domerrors.ErrMalformedResponse)
}

func tryObject(s string) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// matchBrace returns the index of the '}' closing the '{' at start, honouring
// JSON string literals, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseStage accepts integral JSON numbers and numeric strings within range.
func parseStage(v json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		f = float64(n)
	}
	if f != math.Trunc(f) || f < MinStage || f > MaxStage {
		return 0, false
	}
	return int(f), true
}

// parseLabels requires a list of strings; blanks and duplicates are dropped.
func parseLabels(v json.RawMessage) ([]string, bool) {
	var raw []any
	if err := json.Unmarshal(v, &raw); err != nil || raw == nil {
		return nil, false
	}
	labels := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		labels = sliceutil.AppendUnique(labels, strings.TrimSpace(s))
	}
	return labels, true
}
