// Package normalizer converts raw TownNews search rows into canonical articles.
package normalizer

import (
	"errors"
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/tidwall/gjson"
)

// ErrNormalization reports a record that cannot be turned into an article.
var ErrNormalization = errors.New("normalization failed")

// Article is the canonical article record. Field order is the on-disk order.
type Article struct {
	URL                     string   `json:"url"`
	Title                   *string  `json:"title"`
	ArticleText             string   `json:"article_text"`
	SourceDomain            string   `json:"source_domain"`
	PublicationDate         *string  `json:"publication_date"`
	PublicationTimestampGMT *int64   `json:"publication_timestamp_gmt"`
	FirstSeenTimestampGMT   int64    `json:"first_seen_timestamp_gmt"`
	Author                  *string  `json:"author"`
	Keywords                []string `json:"keywords"`
}

// Normalizer holds the HTML to Markdown converter. It is not safe for
// concurrent use.
type Normalizer struct {
	converter *md.Converter
}

// New returns a Normalizer emitting ATX-style headings.
func New() *Normalizer {
	return &Normalizer{
		converter: md.NewConverter("", true, &md.Options{HeadingStyle: "atx"}),
	}
}

// Normalize maps one raw record to an Article. runTS is the batch's collection
// time and becomes first_seen_timestamp_gmt unchanged.
func (n *Normalizer) Normalize(record gjson.Result, domain string, runTS int64) (Article, error) {
	if !record.IsObject() {
		return Article{}, fmt.Errorf("%w: record is not an object", ErrNormalization)
	}

	text, err := n.articleText(record)
	if err != nil {
		return Article{}, err
	}
	pubDate, pubTS := resolveDates(record.Get("starttime"))

	return Article{
		URL:                     record.Get("url").String(),
		Title:                   optionalString(record.Get("title")),
		ArticleText:             text,
		SourceDomain:            domain,
		PublicationDate:         pubDate,
		PublicationTimestampGMT: pubTS,
		FirstSeenTimestampGMT:   runTS,
		Author:                  resolveAuthor(record),
		Keywords:                MergeKeywords(record.Get("keywords"), record.Get("sections")),
	}, nil
}

func (n *Normalizer) articleText(record gjson.Result) (string, error) {
	body, err := ExtractText(record.Get("content"))
	if err != nil {
		return "", err
	}
	prologue := ""
	if p := record.Get("prologue"); p.Type == gjson.String {
		prologue = p.String()
	}
	decoded := html.UnescapeString(prologue + " " + body)

	markdown, err := n.converter.ConvertString(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: convert html: %w", ErrNormalization, err)
	}
	return markdown, nil
}

// IsNonArticle reports whether a record is a bare image or photo item.
func IsNonArticle(record gjson.Result) bool {
	switch strings.ToLower(record.Get("type").String()) {
	case "image", "photo":
		return true
	default:
		return false
	}
}

func optionalString(v gjson.Result) *string {
	if v.Type != gjson.String {
		return nil
	}
	s := v.String()
	return &s
}
