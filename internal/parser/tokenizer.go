// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package parser

import (
	"unicode"

	"github.com/rivo/uniseg"
)

// Tokenizer splits free text into words.
type Tokenizer interface {
	Tokenize(text string) []string
}

// WordTokenizer segments text with the Unicode word boundary rules (UAX #29).
// Qualified names such as "sales.orders" and identifiers such as
// "order_items" stay a single token. Whitespace and punctuation are dropped.
type WordTokenizer struct{}

func (WordTokenizer) Tokenize(text string) []string {
	var words []string
	state := -1
	rest := text
	for len(rest) > 0 {
		var word string
		word, rest, state = uniseg.FirstWordInString(rest, state)
		if isWord(word) {
			words = append(words, word)
		}
	}
	return words
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
