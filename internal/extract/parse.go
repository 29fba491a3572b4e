package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/checklist-cli/internal/model"
)

// Shape tags how a provider response was recognised.
type Shape int

// Response shapes.
const (
	ShapeMalformed Shape = iota
	ShapeArray
	ShapeWrapped
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeWrapped:
		return "wrapped"
	default:
		return "malformed"
	}
}

// wrapperKeys are the object keys that may hold the item array.
var wrapperKeys = []string{"checklist", "items"}

// Parsed is the tagged result of decoding a provider response. Raw holds
// the untyped items for ShapeArray and ShapeWrapped.
type Parsed struct {
	Shape Shape
	Key   string
	Raw   []json.RawMessage
}

// ParseResponse classifies text as a bare array, an object wrapping an
// array under a known key, or malformed. Markdown fences and surrounding
// prose are skipped: each '[' or '{' is tried in turn and the first JSON
// value that classifies wins. A JSON null is never an array.
func ParseResponse(text string) Parsed {
	text = stripFences(text)
	for i := 0; i < len(text); {
		if text[i] != '[' && text[i] != '{' {
			i++
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			i++
			continue
		}
		if p, ok := classify(v); ok {
			return p
		}
		// Skip the whole value so nested arrays are not mistaken for the payload.
		i += int(dec.InputOffset())
	}
	return Parsed{Shape: ShapeMalformed}
}

func classify(v json.RawMessage) (Parsed, bool) {
	switch v[0] {
	case '[':
		arr, ok := itemArray(v)
		if !ok {
			return Parsed{}, false
		}
		return Parsed{Shape: ShapeArray, Raw: arr}, true
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(v, &obj); err != nil {
			return Parsed{}, false
		}
		for _, k := range wrapperKeys {
			if arr, ok := itemArray(obj[k]); ok {
				return Parsed{Shape: ShapeWrapped, Key: k, Raw: arr}, true
			}
		}
	}
	return Parsed{}, false
}

// itemArray decodes v when it is a JSON array that is empty or holds at
// least one object. Arrays of scalars such as "[3]" in prose are rejected.
func itemArray(v json.RawMessage) ([]json.RawMessage, bool) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] != '[' {
		return nil, false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(v, &arr); err != nil {
		return nil, false
	}
	if arr == nil {
		arr = []json.RawMessage{}
	}
	if len(arr) == 0 {
		return arr, true
	}
	for _, e := range arr {
		if e = bytes.TrimSpace(e); len(e) > 0 && e[0] == '{' {
			return arr, true
		}
	}
	return nil, false
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// DecodeItems parses a provider response into checklist items with
// placeholder ids 1..n local to the chunk. It returns ErrMalformedResponse
// when the response is not array-shaped. Item-level problems are corrected
// and reported as warnings.
func DecodeItems(text string) ([]model.ChecklistItem, []string, error) {
	parsed := ParseResponse(text)
	if parsed.Shape == ShapeMalformed {
		return nil, nil, eris.Wrapf(ErrMalformedResponse, "response starts %q", preview(text, 80))
	}

	items := make([]model.ChecklistItem, 0, len(parsed.Raw))
	var warnings []string
	for i, raw := range parsed.Raw {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			warnings = append(warnings, fmt.Sprintf("item %d: not an object, skipped", i+1))
			continue
		}
		item, ws, ok := normalizeItem(fields)
		for _, w := range ws {
			warnings = append(warnings, fmt.Sprintf("item %d: %s", i+1, w))
		}
		if !ok {
			continue
		}
		item.ID = len(items) + 1
		items = append(items, item)
	}
	return items, warnings, nil
}

// normalizeItem coerces one decoded object into a ChecklistItem. ok is
// false when the item has no question text.
func normalizeItem(f map[string]any) (item model.ChecklistItem, warnings []string, ok bool) {
	item.Question = strings.TrimSpace(str(pick(f, "question", "label", "text")))
	if item.Question == "" {
		return item, []string{"missing question, skipped"}, false
	}

	rawType := strings.TrimSpace(str(pick(f, "type", "fieldType", "field_type")))
	ft, exact, found := model.LookupFieldType(rawType)
	switch {
	case found && exact:
		item.Type = ft
	case found:
		item.Type = ft
		warnings = append(warnings, fmt.Sprintf("type %q corrected to %q", rawType, ft))
	case rawType == "":
		item.Type = model.DefaultFieldType
		warnings = append(warnings, fmt.Sprintf("%q: missing type, using %q", item.Question, model.DefaultFieldType))
	default:
		item.Type = model.DefaultFieldType
		warnings = append(warnings, fmt.Sprintf("%q: unknown type %q, using %q", item.Question, rawType, model.DefaultFieldType))
	}

	item.Options = joinList(pick(f, "options", "choices"))
	item.Required = truthy(pick(f, "required", "isRequired", "is_required"))
	item.IsDependent = truthy(pick(f, "isDependent", "is_dependent", "dependent"))
	item.DependentOn = strings.TrimSpace(str(pick(f, "dependentOn", "dependent_on")))
	item.DependentOptions = joinList(pick(f, "dependentOptions", "dependent_options"))

	if item.IsDependent && (item.DependentOn == "" || item.DependentOptions == "") {
		warnings = append(warnings, fmt.Sprintf("%q: isDependent set without dependentOn and dependentOptions", item.Question))
	}
	return item, warnings, true
}

func pick(f map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// joinList accepts a JSON array or a string and returns a comma-joined
// list with blank entries dropped.
func joinList(v any) string {
	var parts []string
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		for _, e := range t {
			parts = append(parts, str(e))
		}
	default:
		parts = strings.Split(str(t), ",")
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "required", "x":
			return true
		}
	}
	return false
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
