package relevance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const lease = `This Lease Agreement is made between the Landlord and the Tenant. 
The monthly rent shall be paid on the first day of each month! Late payment incurs a penalty of five percent.
Either party may terminate this agreement with sixty days written notice? Ok. 
The security deposit will be returned within thirty days after termination.`

func TestKeywords(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"drops short words and starters", "What is the rent?", []string{"rent"}},
		{"strips punctuation", "How does termination work?", []string{"termination", "work"}},
		{"lowercases", "Security DEPOSIT", []string{"security", "deposit"}},
		{"only stopwords", "what when where should", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keywords(tt.question))
		})
	}
}

func TestKeywords_TrimsBeforeStopwordCheck(t *testing.T) {
	// Trailing punctuation is removed first, so "what?" is the stopword
	// "what" and never becomes a keyword of its own.
	assert.Empty(t, Keywords("what?"))
	assert.Empty(t, Keywords("Why? When! Where..."))
	assert.Equal(t, []string{"rent"}, Keywords("rent?"))
	assert.Equal(t, []string{"notice"}, Keywords("(notice)"))
	// Only the edges are trimmed.
	assert.Equal(t, []string{"what's", "deposit"}, Keywords("what's the deposit?"))
}

func TestSelect_MatchesInDocumentOrder(t *testing.T) {
	got := Select("When can I terminate and get my deposit back?", lease, 5, 2000)

	assert.Equal(t,
		"Either party may terminate this agreement with sixty days written notice. "+
			"The security deposit will be returned within thirty days after termination",
		got)
}

func TestSelect_DropsShortUnits(t *testing.T) {
	got := Select("Is it okay?", "Ok okay. Short okay unit! This sentence is okay and long enough.", 5, 2000)

	assert.Equal(t, "This sentence is okay and long enough", got)
}

func TestSelect_NoKeywordsOrMatches(t *testing.T) {
	assert.Empty(t, Select("why?", lease, 5, 2000))
	assert.Empty(t, Select("insurance obligations", lease, 5, 2000))
}

func TestSelect_Bounds(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("The payment schedule applies to every single month. ")
	}
	text := b.String()

	got := Select("payment", text, 3, 2000)
	assert.Equal(t, 3, strings.Count(got, "payment schedule"))

	got = Select("payment", text, 5, 40)
	assert.Len(t, []rune(got), 40)
}

func TestSelect_TruncatesOnRuneBoundary(t *testing.T) {
	text := "किरायेदार हर महीने किराया देगा और समझौता मान्य रहेगा."
	got := Select("किराया", text, 5, 10)

	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasPrefix(text, got))
}

func TestSelect_Deterministic(t *testing.T) {
	q := "What happens after termination of the lease?"
	assert.Equal(t, Select(q, lease, 5, 2000), Select(q, lease, 5, 2000))
}
