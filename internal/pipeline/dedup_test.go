package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobfit-research/internal/model"
)

func TestDedup_DropsEmptyAndDuplicates(t *testing.T) {
	records := []model.FetchRecord{
		{URL: "https://a", StatusCode: 200, Title: "A", Text: "alpha"},
		{URL: "https://b", StatusCode: 404, Error: "HTTP 404"},
		{URL: "https://c", StatusCode: 200, Text: "   "},
		{URL: "https://d", StatusCode: 200, Title: "D", Text: "alpha"},
		{URL: "https://e", StatusCode: 200, Title: "E", Text: "beta"},
	}

	docs := Dedup(records)

	require.Len(t, docs, 2)
	assert.Equal(t, model.Document{URL: "https://a", Title: "A", Text: "alpha"}, docs[0])
	assert.Equal(t, "https://e", docs[1].URL)
}

func TestDedup_Idempotent(t *testing.T) {
	records := []model.FetchRecord{
		{URL: "https://a", Text: "one"},
		{URL: "https://b", Text: "two"},
		{URL: "https://c", Text: "one"},
		{URL: "https://d", Text: "three"},
	}

	once := Dedup(records)
	twice := Dedup(DocumentRecords(once))
	assert.Equal(t, once, twice)
}

func TestDedupPrefix_HashesOnlyThePrefix(t *testing.T) {
	shared := strings.Repeat("x", 50)
	records := []model.FetchRecord{
		{URL: "https://a", Text: shared + " ending one"},
		{URL: "https://b", Text: shared + " ending two"},
	}

	assert.Len(t, DedupPrefix(records, 50), 1)
	assert.Len(t, DedupPrefix(records, 60), 2)
	assert.Len(t, DedupPrefix(records, 0), 2, "non-positive prefix uses the default")
}

func TestDedupPrefix_CountsCharactersNotBytes(t *testing.T) {
	records := []model.FetchRecord{
		{URL: "https://a", Text: "日本語のテキストA"},
		{URL: "https://b", Text: "日本語のテキストB"},
	}
	assert.Len(t, DedupPrefix(records, 8), 1)
	assert.Len(t, DedupPrefix(records, 9), 2)
}

func TestDedup_Empty(t *testing.T) {
	assert.Empty(t, Dedup(nil))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
	assert.Equal(t, "", truncateRunes("abc", 0))
}
