package analysis

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/poiesic/stdgap/core"
)

var codec = sonic.ConfigStd

// ParseGaps decodes a gap-analysis response. The response must hold an
// object with a "gaps" array; every entry needs a title, a description and
// a risk level of High, Medium or Low. Any violation rejects the whole
// response with a *ParseError.
func ParseGaps(response string) ([]*core.Gap, error) {
	items, err := decodeArray(response, "gaps")
	if err != nil {
		return nil, err
	}

	gaps := make([]*core.Gap, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("gaps[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, parseErrorf(path, "expected an object, got %s", typeName(item))
		}

		f := fields{obj: obj, path: path}
		gap := &core.Gap{
			Title:            f.required("title"),
			Description:      f.required("description"),
			RelatedStandards: f.list("related_standards"),
			Evidence:         f.optional("evidence"),
		}
		level := f.required("risk_level")
		if f.err != nil {
			return nil, f.err
		}
		risk, ok := core.ParseRiskLevel(level)
		if !ok {
			return nil, parseErrorf(path+".risk_level", "unknown value %q", level)
		}
		gap.RiskLevel = risk
		gaps = append(gaps, gap)
	}
	return gaps, nil
}

// ParseRecommendations decodes a recommendation response. The response
// must hold an object with a "recommendations" array; every entry needs a
// title, proposed_text, rationale and an implementation_difficulty of Easy,
// Moderate or Difficult.
func ParseRecommendations(response string) ([]*core.Recommendation, error) {
	items, err := decodeArray(response, "recommendations")
	if err != nil {
		return nil, err
	}

	recs := make([]*core.Recommendation, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("recommendations[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, parseErrorf(path, "expected an object, got %s", typeName(item))
		}

		f := fields{obj: obj, path: path}
		rec := &core.Recommendation{
			Title:        f.required("title"),
			Description:  f.optional("description"),
			ProposedText: f.required("proposed_text"),
			Rationale:    f.required("rationale"),
			References:   f.list("references"),
		}
		level := f.required("implementation_difficulty")
		if f.err != nil {
			return nil, f.err
		}
		difficulty, ok := core.ParseDifficulty(level)
		if !ok {
			return nil, parseErrorf(path+".implementation_difficulty", "unknown value %q", level)
		}
		rec.Difficulty = difficulty
		recs = append(recs, rec)
	}
	return recs, nil
}

// decodeArray extracts the JSON object from response and returns its key array.
func decodeArray(response, key string) ([]any, error) {
	body := extractObject(response)
	if body == "" {
		return nil, parseErrorf("", "no JSON object found")
	}

	var top any
	if err := codec.UnmarshalFromString(body, &top); err != nil {
		// Models sometimes drop the opening quote of a key or leave trailing commas.
		if err := codec.UnmarshalFromString(repairJSON(body), &top); err != nil {
			return nil, parseErrorf("", "invalid JSON: %v", err)
		}
	}
	obj, ok := top.(map[string]any)
	if !ok {
		return nil, parseErrorf("", "expected an object, got %s", typeName(top))
	}
	raw, ok := obj[key]
	if !ok {
		return nil, parseErrorf(key, "missing")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, parseErrorf(key, "expected an array, got %s", typeName(raw))
	}
	return items, nil
}

// fields reads typed values out of one response object, keeping the first error.
type fields struct {
	obj  map[string]any
	path string
	err  error
}

func (f *fields) fail(key, format string, args ...any) {
	if f.err == nil {
		f.err = parseErrorf(f.path+"."+key, format, args...)
	}
}

func (f *fields) required(key string) string {
	raw, ok := f.obj[key]
	if !ok || raw == nil {
		f.fail(key, "missing")
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		f.fail(key, "expected a string, got %s", typeName(raw))
		return ""
	}
	if s = sanitize(s); s == "" {
		f.fail(key, "empty")
	}
	return s
}

func (f *fields) optional(key string) string {
	raw, ok := f.obj[key]
	if !ok || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		f.fail(key, "expected a string, got %s", typeName(raw))
		return ""
	}
	return sanitize(s)
}

// list accepts either a single string or an array of strings.
func (f *fields) list(key string) []string {
	raw, ok := f.obj[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return sanitizeAll([]string{v})
	case []any:
		values := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				f.fail(fmt.Sprintf("%s[%d]", key, i), "expected a string, got %s", typeName(item))
				return nil
			}
			values = append(values, s)
		}
		return sanitizeAll(values)
	}
	f.fail(key, "expected a string or array of strings, got %s", typeName(raw))
	return nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
