// Package tokenizer provides text tokenisation for the search index. It
// lower-cases input and splits on non-alphanumeric boundaries. No stemming or
// stop-word removal is applied: the corpus is Vietnamese official
// correspondence, where diacritics and short tokens ("12", "QĐ") carry
// meaning.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens.
func Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
	}
	return tokens
}

// Terms returns just the term strings of Tokenize(text).
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}
