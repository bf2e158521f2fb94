package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// RepairResult is the outcome of normalizing raw backend output.
type RepairResult struct {
	// Compressed is the canonical compact JSON text, or the best-effort
	// cleaned text when no parse succeeded.
	Compressed         string `json:"compressed"`
	WasModified        bool   `json:"wasModified"`
	HadRestrictedField bool   `json:"hadRestrictedField"`
	Method             string `json:"method"`
	IsValidArray       bool   `json:"isValidArray"`
	ValidationError    string `json:"validationError,omitempty"`
}

// repairStrategy attempts to turn cleaned text into a parsed JSON value.
// Strategies are tried in order; the first success wins.
type repairStrategy struct {
	name  string
	parse func(string) (interface{}, bool)
}

// RepairEngine normalizes possibly-malformed AI output into a canonical
// compact JSON array, stripping the restricted field at every depth.
// The engine never fails: unparseable input degrades to best-effort cleaned
// text with IsValidArray=false. Repair is deterministic and idempotent —
// re-running it on its own output reports WasModified=false.
type RepairEngine struct {
	restrictedField string
	strategies      []repairStrategy
	fieldPattern    *regexp.Regexp
}

// NewRepairEngine creates an engine that strips restrictedField from
// repaired structures. An empty name disables field stripping.
func NewRepairEngine(restrictedField string) *RepairEngine {
	e := &RepairEngine{restrictedField: restrictedField}
	e.strategies = []repairStrategy{
		{name: "direct_parse", parse: parseDirect},
		{name: "balanced_extraction", parse: extractBalanced},
		{name: "regex_extraction", parse: extractByRegex},
	}
	if restrictedField != "" {
		// Matches `"field": <value>` with an optional trailing comma, for
		// string-level removal when the text cannot be parsed at all.
		e.fieldPattern = regexp.MustCompile(
			`"` + regexp.QuoteMeta(restrictedField) + `"\s*:\s*("(?:[^"\\]|\\.)*"|[^,}\]]*)\s*,?`)
	}
	return e
}

// Repair runs the full normalization pipeline on raw text.
func (e *RepairEngine) Repair(raw string) RepairResult {
	cleaned := undoDoubleEscaping(strings.TrimSpace(raw))
	cleaned = collapseWhitespaceOutsideStrings(cleaned)

	var parsed interface{}
	method := ""
	for _, s := range e.strategies {
		if v, ok := s.parse(cleaned); ok {
			parsed = v
			method = s.name
			break
		}
	}

	// A value that parsed to a bare string is usually JSON encoded twice.
	if s, ok := parsed.(string); ok {
		var inner interface{}
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			parsed = inner
		}
	}

	hadRestricted := false
	if method == "" {
		// Last resort: strip the restricted field textually, remove control
		// characters, BOM and trailing commas, then try once more.
		fallback := cleaned
		if e.fieldPattern != nil {
			stripped := e.fieldPattern.ReplaceAllString(fallback, "")
			if stripped != fallback {
				hadRestricted = true
				fallback = stripped
			}
		}
		fallback = stripControlCharacters(fallback)
		fallback = removeOrphanedCommas(fallback)
		for _, s := range e.strategies {
			if v, ok := s.parse(fallback); ok {
				parsed = v
				method = "cleanup_retry"
				break
			}
		}
		if method == "" {
			return e.finishUnparsed(raw, fallback, hadRestricted)
		}
		if s, ok := parsed.(string); ok {
			var inner interface{}
			if err := json.Unmarshal([]byte(s), &inner); err == nil {
				parsed = inner
			}
		}
	}

	if e.restrictedField != "" {
		var removed int
		parsed, removed = stripFieldTree(parsed, e.restrictedField)
		if removed > 0 {
			hadRestricted = true
		}
	}

	compressed := compactJSON(parsed)
	result := RepairResult{
		Compressed:         compressed,
		WasModified:        compressed != raw,
		HadRestrictedField: hadRestricted,
		Method:             method,
	}
	if _, ok := parsed.([]interface{}); ok {
		result.IsValidArray = true
	} else {
		result.ValidationError = fmt.Sprintf("parsed value is %s, expected a JSON array", jsonTypeName(parsed))
	}
	return result
}

func (e *RepairEngine) finishUnparsed(raw, cleaned string, hadRestricted bool) RepairResult {
	return RepairResult{
		Compressed:         cleaned,
		WasModified:        cleaned != raw,
		HadRestrictedField: hadRestricted,
		Method:             "none",
		IsValidArray:       false,
		ValidationError:    "text could not be parsed as JSON",
	}
}

func parseDirect(text string) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	return v, true
}

// extractBalanced scans for the first syntactically balanced bracketed
// structure starting at the first '[' or '{', tracking string and escape
// state so brackets inside values do not count.
func extractBalanced(text string) (interface{}, bool) {
	start := -1
	for i, r := range text {
		if r == '[' || r == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '[', '{':
			if !inString {
				depth++
			}
		case ']', '}':
			if !inString {
				depth--
				if depth == 0 {
					return parseDirect(text[start : i+1])
				}
			}
		}
	}
	return nil, false
}

var arraySpanPattern = regexp.MustCompile(`(?s)\[.*\]`)

// extractByRegex is the permissive fallback: grab the widest [...] span and
// try to parse it.
func extractByRegex(text string) (interface{}, bool) {
	span := arraySpanPattern.FindString(text)
	if span == "" {
		return nil, false
	}
	return parseDirect(span)
}

// undoDoubleEscaping unescapes quote characters once when the text is
// wrapped in escaped quotes or escaped quotes dominate bare ones.
func undoDoubleEscaping(text string) string {
	escaped := strings.Count(text, `\"`)
	if escaped == 0 {
		return text
	}
	unescaped := strings.Count(text, `"`) - escaped
	wrapped := strings.HasPrefix(text, `\"`) && strings.HasSuffix(text, `\"`)
	if wrapped || escaped >= unescaped {
		return strings.ReplaceAll(text, `\"`, `"`)
	}
	return text
}

// collapseWhitespaceOutsideStrings removes whitespace between tokens while
// leaving string literals untouched.
func collapseWhitespaceOutsideStrings(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString := false
	escaped := false
	for _, r := range text {
		if inString {
			b.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}
		if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripControlCharacters removes ASCII control characters and a leading
// byte-order mark.
func stripControlCharacters(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, text)
}

var (
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	leadingCommaPattern  = regexp.MustCompile(`([{\[])\s*,`)
	doubleCommaPattern   = regexp.MustCompile(`,\s*,`)
)

// removeOrphanedCommas cleans commas left dangling by textual field removal
// and trailing commas the backend tends to emit.
func removeOrphanedCommas(text string) string {
	for {
		next := doubleCommaPattern.ReplaceAllString(text, ",")
		next = trailingCommaPattern.ReplaceAllString(next, "$1")
		next = leadingCommaPattern.ReplaceAllString(next, "$1")
		if next == text {
			return next
		}
		text = next
	}
}

// stripFieldTree removes the named field from every object at every depth,
// returning the count of removals.
func stripFieldTree(v interface{}, field string) (interface{}, int) {
	switch value := v.(type) {
	case map[string]interface{}:
		removed := 0
		if _, ok := value[field]; ok {
			delete(value, field)
			removed++
		}
		for k, child := range value {
			cleaned, n := stripFieldTree(child, field)
			value[k] = cleaned
			removed += n
		}
		return value, removed
	case []interface{}:
		removed := 0
		for i, child := range value {
			cleaned, n := stripFieldTree(child, field)
			value[i] = cleaned
			removed += n
		}
		return value, removed
	default:
		return v, 0
	}
}

// compactJSON serializes without inserted whitespace or HTML escaping.
func compactJSON(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
