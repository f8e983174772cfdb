package sessions

import (
	"regexp"
	"strings"
)

// stopwords filtered out of session names and slugs.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true, "can": true,
	"need": true, "dare": true, "ought": true, "used": true, "to": true,
	"of": true, "in": true, "for": true, "on": true, "with": true,
	"at": true, "by": true, "from": true, "as": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "between": true, "under": true,
	"again": true, "further": true, "then": true, "once": true,
	"here": true, "there": true, "when": true, "where": true, "why": true,
	"how": true, "all": true, "each": true, "few": true, "more": true,
	"most": true, "other": true, "some": true, "such": true, "no": true,
	"nor": true, "not": true, "only": true, "own": true, "same": true,
	"so": true, "than": true, "too": true, "very": true, "just": true,
	"also": true, "now": true, "what": true, "which": true, "who": true,
	"whom": true, "this": true, "that": true, "these": true, "those": true,
	"am": true, "and": true, "but": true, "if": true, "or": true,
	"because": true, "while": true, "although": true, "i": true,
	"me": true, "my": true, "myself": true, "we": true, "our": true,
	"ours": true, "ourselves": true, "you": true, "your": true,
	"yours": true, "yourself": true, "yourselves": true, "he": true,
	"him": true, "his": true, "himself": true, "she": true, "her": true,
	"hers": true, "herself": true, "it": true, "its": true,
	"itself": true, "they": true, "them": true, "their": true,
	"theirs": true, "themselves": true, "about": true, "tell": true,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z]+`)
var nonSlugChars = regexp.MustCompile(`[^a-z0-9]`)

func keyWords(text string, max int) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	var keep []string
	for _, w := range words {
		if stopwords[w] || len(w) <= 2 {
			continue
		}
		keep = append(keep, w)
		if len(keep) == max {
			break
		}
	}
	return keep
}

// GenerateSessionName derives a session name from the query's key
// words: "what is the meaning of life" becomes "meaning_life".
func GenerateSessionName(query string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = 2
	}
	selected := keyWords(query, maxWords)
	if len(selected) == 0 {
		return "session"
	}
	return strings.Join(selected, "_")
}

// GenerateSlug derives a filename-safe slug from text. Empty text maps
// to "untitled"; text with no usable words degrades to its cleaned
// first 20 characters, then to "session".
func GenerateSlug(text string, maxWords int) string {
	if text == "" {
		return "untitled"
	}
	if maxWords <= 0 {
		maxWords = 5
	}
	selected := keyWords(text, maxWords)
	if len(selected) == 0 {
		head := strings.ToLower(text)
		if len(head) > 20 {
			head = head[:20]
		}
		if safe := nonSlugChars.ReplaceAllString(head, ""); safe != "" {
			return safe
		}
		return "session"
	}
	return strings.Join(selected, "_")
}
