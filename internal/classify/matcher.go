// Package classify implements deterministic pattern-based intent
// classification. Scoring is a regex hit count per category; selection is
// highest score with ties broken by registry declaration order, so the
// same text always yields the same intent.
package classify

import "regexp"

// Category pairs a name with the patterns that score it.
type Category struct {
	Name     string
	Patterns []*regexp.Regexp
}

// NewCategory compiles a category from pattern sources. Patterns are
// matched case-insensitively; sources should carry their own word
// boundaries.
func NewCategory(name string, patterns ...string) Category {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+p))
	}
	return Category{Name: name, Patterns: compiled}
}

// Score counts pattern hits per category. Every category appears in the
// result; unmatched categories score 0. No failure modes: identical input
// always produces identical output.
func Score(message string, categories []Category) map[string]int {
	scores := make(map[string]int, len(categories))
	for _, cat := range categories {
		total := 0
		for _, re := range cat.Patterns {
			total += len(re.FindAllStringIndex(message, -1))
		}
		scores[cat.Name] = total
	}
	return scores
}
