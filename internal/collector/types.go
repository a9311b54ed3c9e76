package collector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrAcquisition reports that no browser session could be started.
	ErrAcquisition = errors.New("browser acquisition failed")
	// ErrExtraction reports that no JSON object could be recovered from a page.
	ErrExtraction = errors.New("content extraction failed")
)

// Target is one site to visit.
type Target struct {
	Domain string
	URL    string
}

// NewTarget maps a domain to its JSON search endpoint.
func NewTarget(domain string) Target {
	domain = strings.TrimSpace(domain)
	return Target{
		Domain: domain,
		URL:    fmt.Sprintf("https://%s/search/?l=100&f=json", domain),
	}
}

// NewTargets maps each domain with NewTarget, preserving order.
func NewTargets(domains []string) []Target {
	out := make([]Target, 0, len(domains))
	for _, d := range domains {
		out = append(out, NewTarget(d))
	}
	return out
}

// Document is a parsed JSON object. Key order and number literals are kept
// exactly as they appeared in the page.
type Document struct {
	result gjson.Result
}

// Result exposes the underlying JSON value.
func (d Document) Result() gjson.Result { return d.result }

// Get returns the value at a gjson path.
func (d Document) Get(path string) gjson.Result { return d.result.Get(path) }

// Raw returns the JSON text of the document.
func (d Document) Raw() string { return d.result.Raw }

// IsZero reports whether the document holds nothing.
func (d Document) IsZero() bool { return d.result.Raw == "" }

// Outcome is the result of fetching one target. A nil Err means success and
// Document holds the page data; otherwise RawContent may hold whatever the
// page rendered.
type Outcome struct {
	Target     Target
	Document   Document
	Err        error
	RawContent string
}

// Success reports whether the fetch produced a document.
func (o Outcome) Success() bool { return o.Err == nil }

// ErrorDescription returns the failure text, or "" on success.
func (o Outcome) ErrorDescription() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
