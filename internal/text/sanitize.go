// Package text provides message sanitization and formatting helpers
// shared by the turn pipeline.
package text

import (
	"regexp"
	"strings"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	disallowedRE = regexp.MustCompile(`[<>{}\[\]\\]`)

	emailRE = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	cardRE  = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)
	ssnRE   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// Sanitize normalizes an inbound message: collapses whitespace, strips
// disallowed characters, and caps length. Malformed input is repaired,
// never rejected.
func Sanitize(message string, maxLen int) string {
	message = whitespaceRE.ReplaceAllString(strings.TrimSpace(message), " ")
	message = disallowedRE.ReplaceAllString(message, "")
	// Cap by characters, not bytes, so a multibyte rune is never split.
	if runes := []rune(message); maxLen > 0 && len(runes) > maxLen {
		message = string(runes[:maxLen]) + "..."
	}
	return message
}

// MaskSensitive masks emails, phone numbers, card numbers, and SSNs so
// message content is safe to log.
func MaskSensitive(message string) string {
	message = emailRE.ReplaceAllString(message, "[EMAIL_MASKED]")
	message = phoneRE.ReplaceAllString(message, "[PHONE_MASKED]")
	message = cardRE.ReplaceAllString(message, "[CARD_MASKED]")
	message = ssnRE.ReplaceAllString(message, "[SSN_MASKED]")
	return message
}

// FormatResponse personalizes and tidies an outbound response.
// The [USER] placeholder is replaced by the user's name when known.
func FormatResponse(response, userName string) string {
	response = strings.ReplaceAll(response, "[USER]", userName)
	response = whitespaceRE.ReplaceAllString(strings.TrimSpace(response), " ")
	if response != "" && !strings.ContainsRune(".!?", rune(response[len(response)-1])) {
		response += "."
	}
	return response
}

// Similarity computes Jaccard word-set similarity between two texts.
func Similarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	union := make(map[string]struct{}, len(wordsA)+len(wordsB))
	intersection := 0
	for w := range wordsA {
		union[w] = struct{}{}
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	for w := range wordsB {
		union[w] = struct{}{}
	}

	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
