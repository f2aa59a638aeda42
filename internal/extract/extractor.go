// Package extract implements stateless entity extraction from raw
// message text. Categories are a fixed enumerated set; a category with no
// matches is absent (nil), never an empty list, because downstream prompt
// building treats the two differently.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

var (
	orderRE = regexp.MustCompile(`\b[A-Z0-9]{6,20}\b`)
	emailRE = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	moneyRE = regexp.MustCompile(`\$\d+(?:\.\d{2})?`)

	dateREs = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), // MM/DD/YYYY
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),     // YYYY-MM-DD
		regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`), // MM-DD-YYYY
	}
)

// EntityMap holds extracted entities per category. A nil slice means the
// category had no matches. Order within a category follows first
// occurrence in the source text. Patterns are evaluated independently, so
// one substring may appear under several categories.
type EntityMap struct {
	OrderNumbers []string `json:"order_numbers,omitempty"`
	Emails       []string `json:"emails,omitempty"`
	PhoneNumbers []string `json:"phone_numbers,omitempty"`
	Amounts      []string `json:"amounts,omitempty"`
	Dates        []string `json:"dates,omitempty"`
	Products     []string `json:"products,omitempty"`
}

// IsEmpty reports whether no category matched.
func (m EntityMap) IsEmpty() bool {
	return m.OrderNumbers == nil && m.Emails == nil && m.PhoneNumbers == nil &&
		m.Amounts == nil && m.Dates == nil && m.Products == nil
}

// Map returns the populated categories as name -> matches. Absent
// categories are omitted entirely.
func (m EntityMap) Map() map[string][]string {
	out := make(map[string][]string)
	if m.OrderNumbers != nil {
		out["order_numbers"] = m.OrderNumbers
	}
	if m.Emails != nil {
		out["emails"] = m.Emails
	}
	if m.PhoneNumbers != nil {
		out["phone_numbers"] = m.PhoneNumbers
	}
	if m.Amounts != nil {
		out["amounts"] = m.Amounts
	}
	if m.Dates != nil {
		out["dates"] = m.Dates
	}
	if m.Products != nil {
		out["products"] = m.Products
	}
	return out
}

// Extractor extracts structured tokens from message text.
type Extractor struct {
	productTerms []string
}

// NewExtractor creates an extractor scanning for the given product terms.
func NewExtractor(productTerms []string) *Extractor {
	return &Extractor{productTerms: productTerms}
}

// Extract scans the message once per category. Deterministic and total:
// no input produces an error.
func (e *Extractor) Extract(message string) EntityMap {
	var m EntityMap

	// Order ids are matched against the uppercased text so mixed-case
	// references like "abc12345" are still caught.
	if matches := orderRE.FindAllString(strings.ToUpper(message), -1); len(matches) > 0 {
		m.OrderNumbers = matches
	}
	if matches := emailRE.FindAllString(message, -1); len(matches) > 0 {
		m.Emails = matches
	}
	if matches := phoneRE.FindAllString(message, -1); len(matches) > 0 {
		m.PhoneNumbers = matches
	}
	if matches := moneyRE.FindAllString(message, -1); len(matches) > 0 {
		m.Amounts = matches
	}
	if dates := extractDates(message); len(dates) > 0 {
		m.Dates = dates
	}
	if products := e.extractProducts(message); len(products) > 0 {
		m.Products = products
	}

	return m
}

// extractDates merges the three date formats in source-text order.
func extractDates(message string) []string {
	type hit struct {
		pos  int
		text string
	}
	var hits []hit
	for _, re := range dateREs {
		for _, loc := range re.FindAllStringIndex(message, -1) {
			hits = append(hits, hit{pos: loc[0], text: message[loc[0]:loc[1]]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.text)
	}
	return out
}

// extractProducts finds configured product terms in first-occurrence order.
func (e *Extractor) extractProducts(message string) []string {
	lower := strings.ToLower(message)

	type hit struct {
		pos  int
		term string
	}
	var hits []hit
	for _, term := range e.productTerms {
		if pos := strings.Index(lower, strings.ToLower(term)); pos >= 0 {
			hits = append(hits, hit{pos: pos, term: term})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.term)
	}
	return out
}
