package text

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "hello   \t world\n", "hello world"},
		{"strips disallowed chars", "hi <script>{x}[y]\\z", "hi scriptxyz"},
		{"keeps punctuation", "where's my order?!", "where's my order?!"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, 1000); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeCapsLength(t *testing.T) {
	long := strings.Repeat("a", 1500)
	got := Sanitize(long, 1000)
	if len(got) != 1003 || !strings.HasSuffix(got, "...") {
		t.Errorf("len=%d suffix=%q, want 1003 with ellipsis", len(got), got[len(got)-3:])
	}
}

func TestSanitizeCapsByRunesNotBytes(t *testing.T) {
	long := strings.Repeat("é", 10)
	got := Sanitize(long, 5)
	if want := strings.Repeat("é", 5) + "..."; got != want {
		t.Errorf("Sanitize = %q, want %q", got, want)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
}

func TestMaskSensitive(t *testing.T) {
	in := "mail me at jane@example.com or call 555-123-4567, card 4111 1111 1111 1111, ssn 123-45-6789"
	got := MaskSensitive(in)
	for _, want := range []string{"[EMAIL_MASKED]", "[PHONE_MASKED]", "[CARD_MASKED]", "[SSN_MASKED]"} {
		if !strings.Contains(got, want) {
			t.Errorf("MaskSensitive missing %s in %q", want, got)
		}
	}
	if strings.Contains(got, "jane@example.com") {
		t.Errorf("email leaked: %q", got)
	}
}

func TestFormatResponse(t *testing.T) {
	if got := FormatResponse("Thanks [USER], all set", "Sam"); got != "Thanks Sam, all set." {
		t.Errorf("FormatResponse = %q", got)
	}
	if got := FormatResponse("Done!", ""); got != "Done!" {
		t.Errorf("FormatResponse = %q", got)
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("track my order", "track my order"); got != 1.0 {
		t.Errorf("identical texts = %v, want 1.0", got)
	}
	if got := Similarity("", ""); got != 0 {
		t.Errorf("empty texts = %v, want 0", got)
	}
	got := Similarity("refund please", "track order")
	if got != 0 {
		t.Errorf("disjoint texts = %v, want 0", got)
	}
}
