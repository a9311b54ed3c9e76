package collector

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Extract recovers a JSON object from rendered page text. The whole text is
// tried first; failing that, the span from the first '{' to the last '}'.
// Pages holding several separate objects can yield an invalid span.
func Extract(text string) (Document, error) {
	if doc, ok := parseObject(text); ok {
		return doc, nil
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Document{}, fmt.Errorf("%w: no JSON object in page", ErrExtraction)
	}
	if doc, ok := parseObject(text[start : end+1]); ok {
		return doc, nil
	}
	return Document{}, fmt.Errorf("%w: embedded JSON is invalid", ErrExtraction)
}

func parseObject(text string) (Document, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !gjson.Valid(text) {
		return Document{}, false
	}
	result := gjson.Parse(text)
	if !result.IsObject() {
		return Document{}, false
	}
	return Document{result: result}, true
}
