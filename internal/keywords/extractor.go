// Package keywords derives the most salient terms of a document by term
// frequency over non-stopword tokens. Extraction results are memoized in a
// fixed-capacity LRU so UI-driven recomputation over the same text is free.
package keywords

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize bounds the in-process memo table.
const DefaultMemoSize = 256

// minTokenLen drops single-character tokens, which carry no topical signal.
const minTokenLen = 2

// Extractor surfaces up to topK representative terms from a text.
type Extractor struct {
	stopwords map[string]struct{}
	memo      *lru.Cache[string, []string]
}

// New creates an extractor for the given stopword language ("spanish" or
// "english"). memoSize <= 0 selects DefaultMemoSize.
func New(language string, memoSize int) (*Extractor, error) {
	stopwords, ok := stopwordSets[language]
	if !ok {
		return nil, fmt.Errorf("unsupported stopword language %q", language)
	}
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[string, []string](memoSize)
	if err != nil {
		return nil, fmt.Errorf("create memo table: %w", err)
	}
	return &Extractor{stopwords: stopwords, memo: memo}, nil
}

// Extract returns the topK highest-frequency distinct terms of text,
// ranked by count descending with lexicographic tie-break. Degenerate input
// yields an empty result, never an error. Callers receive their own copy.
func (e *Extractor) Extract(text string, topK int) []string {
	if topK <= 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	key := memoKey(text, topK)
	if cached, ok := e.memo.Get(key); ok {
		return copyTerms(cached)
	}

	terms := rankTerms(e.tokenize(text), topK)
	e.memo.Add(key, terms)
	return copyTerms(terms)
}

// tokenize lowercases the text and splits it into letter/digit runs,
// dropping stopwords and tokens shorter than minTokenLen.
func (e *Extractor) tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := current.String()
		current.Reset()
		if len([]rune(token)) < minTokenLen {
			return
		}
		if _, stop := e.stopwords[token]; stop {
			return
		}
		tokens = append(tokens, token)
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// rankTerms counts token occurrences and keeps the topK terms.
func rankTerms(tokens []string, topK int) []string {
	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	if len(counts) == 0 {
		return nil
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > topK {
		terms = terms[:topK]
	}
	return terms
}

// memoKey hashes the text so memo keys stay small regardless of document size.
func memoKey(text string, topK int) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:]) + ":" + strconv.Itoa(topK)
}

func copyTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	out := make([]string, len(terms))
	copy(out, terms)
	return out
}

// MemoLen reports the current number of memoized extractions.
func (e *Extractor) MemoLen() int {
	return e.memo.Len()
}
