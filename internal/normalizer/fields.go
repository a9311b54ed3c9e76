package normalizer

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"
)

// resolveDates returns the verbatim publication date and its Unix time.
// Either may be nil.
func resolveDates(starttime gjson.Result) (*string, *int64) {
	iso := starttime.Get("iso8601").String()
	rfc := starttime.Get("rfc2822").String()

	var date *string
	switch {
	case iso != "":
		date = &iso
	case rfc != "":
		date = &rfc
	}

	for _, candidate := range []string{iso, rfc} {
		if candidate == "" {
			continue
		}
		if t, err := dateparse.ParseIn(candidate, time.UTC); err == nil {
			ts := t.Unix()
			return date, &ts
		}
	}

	// TownNews utc values are epoch milliseconds.
	if utc := starttime.Get("utc"); utc.Exists() {
		if ms := utc.Int(); ms != 0 {
			ts := ms / 1000
			return date, &ts
		}
	}
	return date, nil
}

// resolveAuthor prefers the structured authors list and falls back to byline.
// Author entries without any usable name are dropped.
func resolveAuthor(record gjson.Result) *string {
	var names []string
	for _, entry := range arrayOf(record.Get("authors")) {
		if name := authorName(entry); name != "" {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		joined := strings.Join(names, ", ")
		return &joined
	}
	if byline := record.Get("byline"); byline.Type == gjson.String && byline.String() != "" {
		s := byline.String()
		return &s
	}
	return nil
}

func authorName(entry gjson.Result) string {
	if entry.Type == gjson.String {
		return strings.TrimSpace(entry.String())
	}
	if !entry.IsObject() {
		return ""
	}
	if full := strings.TrimSpace(entry.Get("full_name").String()); full != "" {
		return full
	}
	first := strings.TrimSpace(entry.Get("first_name").String())
	last := strings.TrimSpace(entry.Get("last_name").String())
	if joined := strings.TrimSpace(first + " " + last); joined != "" {
		return joined
	}
	return strings.TrimSpace(entry.Get("screen_name").String())
}

// MergeKeywords concatenates the given lists and keeps the first occurrence of
// each non-empty string entry.
func MergeKeywords(lists ...gjson.Result) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, entry := range arrayOf(list) {
			if entry.Type != gjson.String {
				continue
			}
			kw := entry.String()
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

func arrayOf(v gjson.Result) []gjson.Result {
	if !v.IsArray() {
		return nil
	}
	return v.Array()
}
