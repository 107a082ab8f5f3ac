// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Parser classifies text and extracts operation parameters.
// It is immutable and safe for concurrent use.
type Parser struct {
	tok Tokenizer
}

// New returns a Parser using tok to split text into words.
// A nil tokenizer selects WordTokenizer.
func New(tok Tokenizer) *Parser {
	if tok == nil {
		tok = WordTokenizer{}
	}
	return &Parser{tok: tok}
}

var (
	reNonIdent = regexp.MustCompile(`[^A-Za-z0-9._]`)

	schemaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:in|from)\s+(?:the\s+)?schema\s+([A-Za-z0-9_]+)`),
		regexp.MustCompile(`(?i)\bin\s+(?:the\s+)?([A-Za-z0-9_]+)\s+schema\b`),
		regexp.MustCompile(`(?i)\b(?:del|en\s+el)\s+esquema\s+([A-Za-z0-9_]+)`),
	}
)

var (
	tableMarkers = []string{"from", "table", "of"}
	tableFiller  = map[string]bool{"the": true, "table": true, "tabla": true, "el": true, "la": true}

	listAnchors   = map[string]bool{"list": true, "lista": true}
	listLinks     = map[string]bool{"of": true, "de": true, "all": true, "the": true, "todos": true, "todas": true, "los": true, "las": true}
	allAnchors    = map[string]bool{"all": true, "todas": true, "todos": true}
	allArticles   = map[string]bool{"the": true, "las": true, "los": true}
	keywordAnchor = map[string]bool{"containing": true, "for": true, "with": true, "named": true, "like": true, "contiene": true, "con": true}
	searchAnchor  = map[string]bool{"find": true, "search": true, "buscar": true}
	keywordFiller = map[string]bool{"table": true, "tables": true, "tabla": true, "tablas": true, "the": true, "a": true, "for": true}
)

// ExtractTableName returns the token following the first of "from", "table"
// or "of", falling back to the last whitespace-separated token. Characters
// outside [A-Za-z0-9._] are removed. ok is false only when nothing remains.
func (p *Parser) ExtractTableName(text string) (string, bool) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return "", false
	}

	for _, marker := range tableMarkers {
		for i, tok := range tokens {
			if !strings.EqualFold(tok, marker) {
				continue
			}
			for j := i + 1; j < len(tokens); j++ {
				if tableFiller[strings.ToLower(tokens[j])] {
					continue
				}
				if name := cleanIdent(tokens[j]); name != "" {
					return name, true
				}
				break
			}
		}
	}

	name := cleanIdent(tokens[len(tokens)-1])
	return name, name != ""
}

// ExtractSchema recognises "in schema X", "from the schema X", "in the X schema",
// "del esquema X" and "en el esquema X".
func (p *Parser) ExtractSchema(text string) (string, bool) {
	for _, re := range schemaPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ExtractEntity returns the singular, lower-cased, accent-free entity named
// after "list [of]", "lista de" or "all [the]". For "lista de países" it
// returns "pais".
func (p *Parser) ExtractEntity(text string) (string, bool) {
	words := p.words(text)
	for i, w := range words {
		var j int
		switch {
		case listAnchors[w]:
			j = i + 1
			for j < len(words) && listLinks[words[j]] {
				j++
			}
		case allAnchors[w]:
			j = i + 1
			for j < len(words) && allArticles[words[j]] {
				j++
			}
		default:
			continue
		}
		if j < len(words) {
			if entity := Singularize(Fold(words[j])); entity != "" {
				return entity, true
			}
		}
	}
	return "", false
}

// ExtractSearchKeyword returns the term to search table names for.
// Words after "containing", "for", "with", "named" or "like" win over words
// after "find", "search" or "buscar". Filler such as "tables" is skipped.
func (p *Parser) ExtractSearchKeyword(text string) (string, bool) {
	words := p.words(text)
	if kw, ok := wordAfter(words, keywordAnchor); ok {
		return kw, true
	}
	return wordAfter(words, searchAnchor)
}

func wordAfter(words []string, anchors map[string]bool) (string, bool) {
	for i, w := range words {
		if !anchors[w] {
			continue
		}
		for j := i + 1; j < len(words); j++ {
			if keywordFiller[words[j]] || anchors[words[j]] || searchAnchor[words[j]] {
				continue
			}
			return words[j], true
		}
	}
	return "", false
}

// words tokenizes and lower-cases text.
func (p *Parser) words(text string) []string {
	tokens := p.tok.Tokenize(text)
	caser := cases.Lower(language.Und)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, caser.String(t))
	}
	return out
}

func cleanIdent(s string) string {
	return reNonIdent.ReplaceAllString(s, "")
}

// Fold lower-cases s and strips diacritics: "Países" becomes "paises".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return cases.Lower(language.Und).String(folded)
}

// Singularize strips a plural suffix: "es" after consonants that take it in
// Spanish and English ("vendedores", "paises", "boxes"), otherwise a final "s".
// A consonant cluster before "les" or "res" keeps its "e" ("tables", "centres").
func Singularize(s string) string {
	if len(s) > 4 && strings.HasSuffix(s, "es") {
		switch c := s[len(s)-3]; c {
		case 'r', 'l':
			if isVowel(s[len(s)-4]) {
				return s[:len(s)-2]
			}
		case 'n', 'd', 'z', 's', 'j', 'x':
			return s[:len(s)-2]
		}
	}
	if len(s) > 3 && strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}
