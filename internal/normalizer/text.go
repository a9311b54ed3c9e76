package normalizer

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const maxTextDepth = 64

// ExtractText flattens a content value depth-first. Strings contribute
// themselves; objects join their string values and non-empty nested text in
// key order; arrays join their non-empty elements; anything else is empty.
func ExtractText(v gjson.Result) (string, error) {
	return extractText(v, 0)
}

func extractText(v gjson.Result, depth int) (string, error) {
	if depth > maxTextDepth {
		return "", fmt.Errorf("%w: content nested deeper than %d levels", ErrNormalization, maxTextDepth)
	}
	switch {
	case v.Type == gjson.String:
		return v.String(), nil
	case v.IsObject():
		var (
			parts []string
			err   error
		)
		v.ForEach(func(_, value gjson.Result) bool {
			if value.Type == gjson.String {
				parts = append(parts, value.String())
				return true
			}
			if !value.IsObject() && !value.IsArray() {
				return true
			}
			var nested string
			nested, err = extractText(value, depth+1)
			if err != nil {
				return false
			}
			if nested != "" {
				parts = append(parts, nested)
			}
			return true
		})
		if err != nil {
			return "", err
		}
		return strings.Join(parts, " "), nil
	case v.IsArray():
		var (
			parts []string
			err   error
		)
		v.ForEach(func(_, value gjson.Result) bool {
			var nested string
			nested, err = extractText(value, depth+1)
			if err != nil {
				return false
			}
			if nested != "" {
				parts = append(parts, nested)
			}
			return true
		})
		if err != nil {
			return "", err
		}
		return strings.Join(parts, " "), nil
	default:
		return "", nil
	}
}
