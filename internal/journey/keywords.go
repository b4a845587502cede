package journey

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultKeywordLimit is how many keywords ExtractKeywords keeps by default.
const DefaultKeywordLimit = 10

var nonWord = regexp.MustCompile(`[^\w\s]`)

var stopWords = map[string]bool{
	"the": true, "be": true, "to": true, "of": true, "and": true, "a": true, "in": true,
	"that": true, "have": true, "i": true, "it": true, "for": true, "not": true, "on": true,
	"with": true, "he": true, "as": true, "you": true, "do": true, "at": true, "this": true,
	"but": true, "his": true, "by": true, "from": true, "they": true, "we": true, "say": true,
	"her": true, "she": true, "or": true, "an": true, "will": true, "my": true, "one": true,
	"all": true, "would": true, "there": true, "their": true, "what": true, "so": true,
	"up": true, "out": true, "if": true, "about": true, "who": true, "get": true, "which": true,
	"go": true, "me": true, "when": true, "make": true, "can": true, "like": true, "time": true,
	"no": true, "just": true, "him": true, "know": true, "take": true, "people": true,
	"into": true, "year": true, "your": true, "good": true, "some": true, "could": true,
	"them": true, "see": true, "other": true, "than": true, "then": true, "now": true,
	"look": true, "only": true, "come": true, "its": true, "over": true,
}

// ExtractKeywords picks the most frequent meaningful words from page text.
// Words of three characters or fewer and common stop words are ignored.
// Ties keep the order of first appearance.
func ExtractKeywords(text string, limit int) []string {
	if text == "" || limit <= 0 {
		return nil
	}

	words := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(text), " "))

	freq := make(map[string]int)
	var seen []string
	for _, w := range words {
		if len(w) <= 3 || stopWords[w] {
			continue
		}
		if freq[w] == 0 {
			seen = append(seen, w)
		}
		freq[w]++
	}

	sort.SliceStable(seen, func(i, j int) bool {
		return freq[seen[i]] > freq[seen[j]]
	})

	if len(seen) > limit {
		seen = seen[:limit]
	}
	return seen
}
