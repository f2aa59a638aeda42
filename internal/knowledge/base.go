// Package knowledge holds the static Q/A knowledge base consulted before
// any completion call. A lookup hit bypasses the completion service
// entirely for that turn.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"deskbot/internal/logging"
)

// FAQ is one question/answer pair.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// BusinessInfo holds the contact details surfaced in prompts and
// escalation responses.
type BusinessInfo struct {
	CompanyName  string `json:"company_name"`
	SupportHours string `json:"support_hours"`
	SupportEmail string `json:"support_email"`
	SupportPhone string `json:"support_phone"`
}

// Base is the loaded knowledge base.
type Base struct {
	FAQs               []FAQ        `json:"faqs"`
	EscalationKeywords []string     `json:"escalation_keywords"`
	Business           BusinessInfo `json:"business_info"`
}

// minKeywordLen filters stopwords from overlap matching: only question
// words longer than this count.
const minKeywordLen = 3

// DefaultBase returns the embedded knowledge base used when no file is
// configured or the configured file is missing.
func DefaultBase() *Base {
	return &Base{
		FAQs: []FAQ{
			{
				Question: "How do I track my order?",
				Answer:   "You can track your order by logging into your account and viewing the order status, or by using the tracking number sent to your email.",
			},
			{
				Question: "What is your return policy?",
				Answer:   "We offer a 30-day return policy for most items. Items must be in original condition with tags attached.",
			},
			{
				Question: "How do I cancel my order?",
				Answer:   "You can cancel your order within 1 hour of placing it by contacting customer service or through your account dashboard.",
			},
		},
		EscalationKeywords: []string{"speak to human", "manager", "complaint", "frustrated", "angry"},
		Business: BusinessInfo{
			CompanyName:  "Your Company",
			SupportHours: "9 AM - 6 PM EST, Monday-Friday",
			SupportEmail: "support@yourcompany.com",
			SupportPhone: "1-800-123-4567",
		},
	}
}

// Load reads a knowledge base JSON file, falling back to the embedded
// defaults when the path is empty or the file does not exist.
func Load(path string) (*Base, error) {
	if path == "" {
		return DefaultBase(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Knowledge("knowledge base %s not found, using defaults", path)
			return DefaultBase(), nil
		}
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}

	var base Base
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base %s: %w", path, err)
	}
	if base.Business.CompanyName == "" {
		base.Business = DefaultBase().Business
	}
	return &base, nil
}

// Lookup finds a direct FAQ answer via keyword overlap: the first FAQ
// with any question word longer than minKeywordLen contained in the
// message wins. Reports false when nothing matches.
func (b *Base) Lookup(message string) (string, bool) {
	lower := strings.ToLower(message)

	for _, faq := range b.FAQs {
		for _, word := range strings.Fields(strings.ToLower(faq.Question)) {
			if len(word) > minKeywordLen && strings.Contains(lower, word) {
				logging.Knowledge("faq hit on %q", word)
				return faq.Answer, true
			}
		}
	}
	return "", false
}
