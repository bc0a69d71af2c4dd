package parser

import (
	"strconv"
	"strings"
)

// Resolve evaluates a dotted path expression against an arbitrary nested
// object graph (the map[string]interface{} / []interface{} shapes produced
// by encoding/json). A segment is either a plain key
// ("props.pageProps.advert") or an array filter
// ("details[label=Rok produkcji].value") selecting the first element of the
// named array field whose property equals the literal value. A missing key
// at any depth yields nil; resolution never panics. Filter syntax applied
// to a non-array target also yields nil.
//
// Schemas are data, unknown at compile time, so this is a small interpreter
// over the path grammar rather than per-field code.
func Resolve(root interface{}, path string) interface{} {
	if path == "" {
		return root
	}

	current := root
	for _, segment := range splitPath(path) {
		if current == nil {
			return nil
		}
		name, filterProp, filterValue, isFilter := parseSegment(segment)

		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		value, ok := obj[name]
		if !ok {
			return nil
		}

		if !isFilter {
			current = value
			continue
		}

		arr, ok := value.([]interface{})
		if !ok {
			return nil
		}
		current = nil
		for _, elem := range arr {
			elemObj, ok := elem.(map[string]interface{})
			if !ok {
				continue
			}
			if stringify(elemObj[filterProp]) == filterValue {
				current = elem
				break
			}
		}
	}
	return current
}

// splitPath splits on dots outside bracket pairs, so filter literals may
// contain dots.
func splitPath(path string) []string {
	var segments []string
	var sb strings.Builder
	depth := 0
	for _, r := range path {
		switch r {
		case '[':
			depth++
			sb.WriteRune(r)
		case ']':
			if depth > 0 {
				depth--
			}
			sb.WriteRune(r)
		case '.':
			if depth == 0 {
				segments = append(segments, sb.String())
				sb.Reset()
			} else {
				sb.WriteRune(r)
			}
		default:
			sb.WriteRune(r)
		}
	}
	segments = append(segments, sb.String())
	return segments
}

// parseSegment decomposes "name[prop=value]" into its parts. A segment
// without a well-formed filter is treated as a plain key.
func parseSegment(segment string) (name, prop, value string, isFilter bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 || !strings.HasSuffix(segment, "]") {
		return segment, "", "", false
	}
	inner := segment[open+1 : len(segment)-1]
	eq := strings.IndexByte(inner, '=')
	if eq < 0 {
		return segment, "", "", false
	}
	return segment[:open], inner[:eq], inner[eq+1:], true
}

// stringify renders a JSON scalar for filter comparison. Whole floats
// print without a fractional part so [id=123] matches a numeric 123.
func stringify(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}
