package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupMatchesOnKeyword(t *testing.T) {
	base := DefaultBase()

	answer, ok := base.Lookup("how can I track something I bought")
	require.True(t, ok)
	assert.Contains(t, answer, "track your order")

	answer, ok = base.Lookup("I need to cancel this")
	require.True(t, ok)
	assert.Contains(t, answer, "cancel your order")
}

func TestLookupIgnoresShortWords(t *testing.T) {
	base := DefaultBase()

	// "how", "do", "I", "my" appear in every question but are too short
	// to count as keywords.
	_, ok := base.Lookup("how do I do my thing")
	assert.False(t, ok)
}

func TestLookupMissReturnsFalse(t *testing.T) {
	base := DefaultBase()
	_, ok := base.Lookup("hello there")
	assert.False(t, ok)
}

func TestLookupFirstFAQWins(t *testing.T) {
	base := &Base{FAQs: []FAQ{
		{Question: "shipping rates overseas", Answer: "first"},
		{Question: "overseas shipping times", Answer: "second"},
	}}
	answer, ok := base.Lookup("tell me about overseas shipping")
	require.True(t, ok)
	assert.Equal(t, "first", answer)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	base, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Len(t, base.FAQs, 3)
	assert.Equal(t, "Your Company", base.Business.CompanyName)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, base.FAQs)
}

func TestLoadCustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	data := `{
		"faqs": [{"question": "warranty length", "answer": "Two years."}],
		"business_info": {
			"company_name": "Acme",
			"support_hours": "24/7",
			"support_email": "help@acme.test",
			"support_phone": "555-0100"
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	base, err := Load(path)
	require.NoError(t, err)
	require.Len(t, base.FAQs, 1)

	answer, ok := base.Lookup("what is the warranty on this")
	require.True(t, ok)
	assert.Equal(t, "Two years.", answer)
	assert.Equal(t, "Acme", base.Business.CompanyName)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
