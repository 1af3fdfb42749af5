package pipeline

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sells-group/jobfit-research/internal/model"
)

// DefaultDedupPrefixChars bounds how much of each document is hashed.
const DefaultDedupPrefixChars = 20000

// Dedup drops records without text and collapses records whose text is
// identical within the first DefaultDedupPrefixChars characters. The first
// record of each group keeps its position.
func Dedup(records []model.FetchRecord) []model.Document {
	return DedupPrefix(records, DefaultDedupPrefixChars)
}

// DedupPrefix is Dedup with an explicit hashed prefix length in characters.
func DedupPrefix(records []model.FetchRecord, prefixChars int) []model.Document {
	if prefixChars <= 0 {
		prefixChars = DefaultDedupPrefixChars
	}

	seen := make(map[string]struct{}, len(records))
	docs := make([]model.Document, 0, len(records))
	for _, rec := range records {
		if !rec.OK() {
			continue
		}
		key := contentKey(rec.Text, prefixChars)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		docs = append(docs, model.Document{URL: rec.URL, Title: rec.Title, Text: rec.Text})
	}
	return docs
}

// DocumentRecords turns documents back into records so Dedup can be rerun
// on its own output.
func DocumentRecords(docs []model.Document) []model.FetchRecord {
	out := make([]model.FetchRecord, len(docs))
	for i, d := range docs {
		out[i] = model.FetchRecord{URL: d.URL, StatusCode: 200, Title: d.Title, Text: d.Text}
	}
	return out
}

func contentKey(text string, prefixChars int) string {
	sum := sha256.Sum256([]byte(truncateRunes(text, prefixChars)))
	return hex.EncodeToString(sum[:])
}

// truncateRunes returns at most n characters of s.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
