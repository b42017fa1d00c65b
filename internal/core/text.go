// ABOUTME: Accent-insensitive text folding and clause tokenization shared by routing rules
// ABOUTME: Detects negated intent cues such as "no quiero ejercicios" or "I don't want exercises"
package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips diacritics so "Está" and "esta" compare equal
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return strings.ReplaceAll(out, "n't", " not")
}

// clauses splits folded text on punctuation and returns the words of each clause
func clauses(s string) [][]string {
	var result [][]string
	var words []string
	var word strings.Builder

	flushWord := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}
	flushClause := func() {
		flushWord()
		if len(words) > 0 {
			result = append(result, words)
			words = nil
		}
	}

	for _, r := range fold(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			word.WriteRune(r)
		case r == ',' || r == '.' || r == ';' || r == ':' || r == '!' || r == '?' || r == '¿' || r == '¡' || r == '\n':
			flushClause()
		default:
			flushWord()
		}
	}
	flushClause()
	return result
}

// words returns all words of s across clauses
func words(s string) []string {
	var all []string
	for _, c := range clauses(s) {
		all = append(all, c...)
	}
	return all
}

var negators = map[string]bool{
	"no": true, "sin": true, "ni": true, "tampoco": true, "nada": true,
	"not": true, "without": true, "never": true, "nunca": true,
}

// negationFillers may sit between a negator and the cue it negates
var negationFillers = map[string]bool{
	"quiero": true, "necesito": true, "deseo": true, "requiero": true, "me": true,
	"des": true, "hagas": true, "pongas": true, "mas": true, "de": true, "hace": true,
	"falta": true, "el": true, "la": true, "los": true, "las": true, "un": true,
	"una": true, "unos": true, "unas": true, "do": true, "want": true, "need": true,
	"any": true, "more": true, "give": true, "to": true, "the": true, "a": true,
	"an": true, "i": true, "solo": true, "por": true, "favor": true,
}

// negationWindow is how many filler words may separate a negator from its cue
const negationWindow = 3

// cueMatch is one occurrence of a cue phrase in a clause
type cueMatch struct {
	clause  int
	start   int
	negated bool
}

// findCue locates every occurrence of a folded multi-word phrase in the clauses
func findCue(cl [][]string, phrase []string) []cueMatch {
	var found []cueMatch
	for ci, c := range cl {
		for i := 0; i+len(phrase) <= len(c); i++ {
			match := true
			for j, p := range phrase {
				if c[i+j] != p {
					match = false
					break
				}
			}
			if match {
				found = append(found, cueMatch{clause: ci, start: i, negated: negatedAt(c, i)})
			}
		}
	}
	return found
}

// negatedAt reports whether the word at pos is preceded by a negator separated
// only by filler words
func negatedAt(clause []string, pos int) bool {
	for back := 1; back <= negationWindow+1 && pos-back >= 0; back++ {
		w := clause[pos-back]
		if negators[w] {
			return true
		}
		if !negationFillers[w] {
			return false
		}
	}
	return false
}
