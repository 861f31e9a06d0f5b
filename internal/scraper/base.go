// Selector fallback primitives shared by the site scrapers.
// A field is described by an ordered list of candidates; the first one that
// yields a non-empty value wins, so partial markup drift only needs a new
// entry at the front of the list.

package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/mo"
)

// Candidate is one way of locating a field on a page
type Candidate struct {
	Selector string
	// Extract turns the first matched element into a value. Nil means trimmed text.
	Extract func(*goquery.Selection) string
}

// Candidates is a prioritized locator list, evaluated front to back
type Candidates []Candidate

// Texts builds a candidate list that reads the text of each selector in turn
func Texts(selectors ...string) Candidates {
	cs := make(Candidates, 0, len(selectors))
	for _, sel := range selectors {
		cs = append(cs, Candidate{Selector: sel})
	}
	return cs
}

// First returns the first non-empty value produced by the candidates under root
func (cs Candidates) First(root *goquery.Selection) mo.Option[string] {
	if root == nil {
		return mo.None[string]()
	}
	for _, c := range cs {
		el := root.Find(c.Selector).First()
		if el.Length() == 0 {
			continue
		}
		extract := c.Extract
		if extract == nil {
			extract = Text
		}
		if v := extract(el); v != "" {
			return mo.Some(v)
		}
	}
	return mo.None[string]()
}

// FirstMatch returns the matches of the first selector that finds at least one element.
// The returned selection is empty when nothing matched.
func FirstMatch(root *goquery.Selection, selectors []string) *goquery.Selection {
	if root == nil {
		return &goquery.Selection{}
	}
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return root.Slice(0, 0)
}

// Text is the default extractor: normalized single-line text content
func Text(s *goquery.Selection) string {
	return CleanLine(s.Text())
}

// Attr returns an extractor that reads an attribute value
func Attr(name string) func(*goquery.Selection) string {
	return func(s *goquery.Selection) string {
		v, _ := s.Attr(name)
		return strings.TrimSpace(v)
	}
}

// Parse builds a document from page HTML
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
