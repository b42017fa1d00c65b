// ABOUTME: FollowUpDetector recognizes short deictic requests to evaluate the previous answer
// ABOUTME: Matches whole utterances like "¿Está bien explicado?" or "is that right?"
package core

import (
	"regexp"
	"strings"
)

// DefaultFollowUpMaxWords bounds how long a follow-up evaluation reference may be
const DefaultFollowUpMaxWords = 8

var (
	followUpPrefix = `^(?:(?:y|pero|entonces|oye|bueno|ok|okay|and|so|but|hey|well)\s+)*`
	followUpSuffix = `(?:\s+(?:o no|verdad|no|right|then|now|entonces|ahora|asi))*$`

	followUpCores = []string{
		// Spanish
		`(?:esta|estaba|estuvo|quedo|es|era) (?:bien|correct[oa]|clar[oa])(?: (?:explicad[oa]|hech[oa]|resuelt[oa]|eso|esto|(?:la|mi|tu) (?:respuesta|solucion|explicacion)|(?:el|mi|tu) resultado))?`,
		`(?:es|esta) (?:eso|esto) (?:bien|correct[oa])`,
		`(?:eso|esto|(?:la|mi|tu) (?:respuesta|solucion|explicacion)|(?:el|mi|tu) resultado) (?:esta|estaba|es|era|estuvo|quedo) (?:bien|correct[oa]|clar[oa])`,
		`(?:esta|estaba|es) bien lo que (?:hice|dije|puse|escribi|respondi|resolvi)`,
		`correct[oa]`,
		`(?:que tal|como) (?:estuvo|esta|quedo)(?: (?:la|mi|tu|esa|esta) (?:respuesta|explicacion|solucion))?`,
		`que tan (?:buen[oa]|bien|clar[oa]|correct[oa]) (?:fue|es|esta|estuvo|quedo)(?: (?:la|mi|tu|esa|esta) (?:respuesta|explicacion|solucion))?`,
		`(?:me )?(?:lo|la) (?:hice|explique|resolvi|explicaste|resolviste|hiciste) bien`,
		`(?:evalua|revisa|califica|corrige)(?:lo|la|me)?(?: (?:la|mi|tu|esa|esta) (?:respuesta|explicacion|solucion))?`,
		`tiene sentido`,
		// English
		`is (?:that|this|it) (?:right|correct|good|ok|okay|accurate|clear)`,
		`(?:that|this|it|my answer|the answer) (?:is|was|looks) (?:right|correct|good|ok|okay)`,
		`right|correct`,
		`(?:was|is) (?:that|this|it) (?:a )?(?:good|right|correct|clear)(?: (?:answer|explanation))?`,
		`how (?:good|accurate|clear|well) (?:was|is) (?:it|that|this)(?: (?:answer|explanation))?`,
		`how (?:well )?did (?:i|you) do`,
		`did (?:i|you) get (?:it|that) right`,
		`(?:am|was) i right`,
		`(?:check|grade|rate|evaluate|review) (?:it|that|this|my answer|the answer)`,
		`does (?:that|this|it) make sense`,
	}
)

// FollowUpDetector matches follow-up evaluation references
type FollowUpDetector struct {
	patterns []*regexp.Regexp
	maxWords int
}

// NewFollowUpDetector creates a detector with the built-in Spanish and English patterns
func NewFollowUpDetector() *FollowUpDetector {
	patterns := make([]*regexp.Regexp, 0, len(followUpCores))
	for _, core := range followUpCores {
		patterns = append(patterns, regexp.MustCompile(followUpPrefix + "(?:" + core + ")" + followUpSuffix))
	}
	return &FollowUpDetector{patterns: patterns, maxWords: DefaultFollowUpMaxWords}
}

// Matches reports whether the utterance is a short deictic evaluation reference
func (d *FollowUpDetector) Matches(utterance string) bool {
	w := words(utterance)
	if len(w) == 0 || len(w) > d.maxWords {
		return false
	}
	normalized := strings.Join(w, " ")
	for _, p := range d.patterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}
