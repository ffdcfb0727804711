package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fieldsPreservingBackslashN holds field names where a literal "\n" is
// meaningful source text (generated code) and must not be unescaped into
// a real newline during normalization.
var fieldsPreservingBackslashN = map[string]bool{
	"code":            true,
	"fixed_code":      true,
	"revised_content": true,
}

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyPattern   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	missingCommaPattern  = regexp.MustCompile(`("|\d|true|false|null)(\s*\n\s*)("|\{|\[)`)

	pythonBoolNonePattern = regexp.MustCompile(`\b(True|False|None)\b`)
	singleQuotedPattern   = regexp.MustCompile(`'([^'\\]*)'`)
)

// ExtractJSON performs a robust extraction/repair pipeline: accept raw
// JSON as-is; otherwise strip markdown fences, extract the outermost
// {...} slice, and repair common LLM defects (trailing commas, unquoted
// keys, missing commas before a nested object/array) before parsing.
// Returns the parsed object as a map, recursively normalized per
// normalizeEscapes.
func ExtractJSON(raw string) (map[string]any, error) {
	candidate := strings.TrimSpace(raw)

	var direct map[string]any
	if err := json.Unmarshal([]byte(candidate), &direct); err == nil {
		normalizeEscapes(direct, "")
		return direct, nil
	}

	if m := fencePattern.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	candidate = outermostBraces(candidate)
	candidate = repairCommon(candidate)

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err == nil {
		normalizeEscapes(out, "")
		return out, nil
	}

	literal := pythonLiteralFallback(candidate)
	if err := json.Unmarshal([]byte(literal), &out); err != nil {
		return nil, err
	}
	normalizeEscapes(out, "")
	return out, nil
}

// pythonLiteralFallback is the last-resort repair stage: it treats the
// candidate as a Python dict literal (single-quoted strings, True/False/
// None) and normalizes it to JSON, mirroring the substitute-then-parse
// trick of converting true/false/null to True/False/None before an
// ast.literal_eval call, run in reverse.
func pythonLiteralFallback(s string) string {
	s = pythonBoolNonePattern.ReplaceAllStringFunc(s, func(m string) string {
		switch m {
		case "True":
			return "true"
		case "False":
			return "false"
		default:
			return "null"
		}
	})
	return singleQuotedPattern.ReplaceAllString(s, `"$1"`)
}

// outermostBraces slices from the first '{' to its matching closing '}',
// tolerating leading/trailing prose around the JSON object.
func outermostBraces(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// repairCommon fixes the most frequent malformed-JSON patterns LLMs emit.
func repairCommon(s string) string {
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	s = unquotedKeyPattern.ReplaceAllString(s, `$1"$2"$3`)
	s = missingCommaPattern.ReplaceAllString(s, "$1,$2$3")
	return s
}

// normalizeEscapes recursively un-escapes literal \n, \t, \r sequences
// left over from double-JSON-encoding in string values, except inside
// fields named code/fixed_code/revised_content where they are meaningful
// source text. key is the map key this value was stored under (empty at
// the root; list elements inherit the key of their list).
func normalizeEscapes(v any, key string) {
	switch val := v.(type) {
	case map[string]any:
		for k, nested := range val {
			if s, ok := nested.(string); ok {
				if !fieldsPreservingBackslashN[k] {
					val[k] = unescapeLiteral(s)
				}
				continue
			}
			normalizeEscapes(nested, k)
		}
	case []any:
		for i, nested := range val {
			if s, ok := nested.(string); ok {
				if !fieldsPreservingBackslashN[key] {
					val[i] = unescapeLiteral(s)
				}
				continue
			}
			normalizeEscapes(nested, key)
		}
	}
}

func unescapeLiteral(s string) string {
	replacer := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r")
	return replacer.Replace(s)
}
