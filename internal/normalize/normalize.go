// Package normalize canonicalizes free-text fund names before comparison.
//
// Name applies the same deterministic pipeline to both catalogs, so two
// spellings of the same fund ("ABC Growth UITF", "abc growth fund") compare
// equal after normalization. The pipeline is idempotent:
// Name(Name(x)) == Name(x) for all inputs.
package normalize

import (
	"strings"
	"unicode"
)

// preserved tokens are kept verbatim (acronyms and currency codes that
// would be mangled by title-casing).
var preserved = map[string]struct{}{
	"PHP": {}, "USD": {}, "EUR": {}, "JPY": {},
	"US": {}, "GS": {}, "ESG": {}, "MM": {},
	"BDO": {}, "BPI": {}, "PNB": {}, "RCBC": {},
}

// replacements is the token-level substitution table, keyed on the
// post-title-casing token. Values must themselves be fixed points of the
// pipeline or idempotence breaks.
var replacements = map[string]string{
	"Uitf":  "Fund",
	"Funds": "Fund",
	"Mgmt":  "Management",
	"Phil":  "Philippine",
	"Phils": "Philippine",
	"&":     "And",
}

// removals lists tokens dropped entirely, including the empty token
// produced by consecutive separators.
var removals = map[string]struct{}{
	"":    {},
	"The": {},
}

// phrases are literal fragments stripped anywhere in the joined string.
// They are written in post-token-processing form (hyphens already gone,
// tokens already cased).
var phrases = []string{
	" Retail Class",
	" Institutional Class",
}

// Name returns the canonical form of a raw fund name.
func Name(raw string) string {
	// Hyphens act as separators.
	s := strings.ReplaceAll(raw, "-", " ")

	var tokens []string
	for _, tok := range strings.Split(s, " ") {
		if _, keep := preserved[tok]; !keep {
			tok = titleCase(tok)
		}
		if repl, ok := replacements[tok]; ok {
			tok = repl
		}
		if _, drop := removals[tok]; drop {
			continue
		}
		tokens = append(tokens, tok)
	}

	joined := strings.Join(tokens, " ")
	for _, p := range phrases {
		joined = strings.ReplaceAll(joined, p, "")
	}
	joined = collapseTrailingDouble(joined)
	return strings.TrimSpace(joined)
}

// titleCase upper-cases the first letter and lower-cases the rest.
func titleCase(tok string) string {
	runes := []rune(tok)
	for i, r := range runes {
		if i == 0 {
			runes[i] = unicode.ToUpper(r)
		} else {
			runes[i] = unicode.ToLower(r)
		}
	}
	return string(runes)
}

// collapseTrailingDouble folds repeated trailing descriptor words into one,
// e.g. "Abc Growth Fund Fund" -> "Abc Growth Fund". The doubling arises
// when a name already ends in the generic descriptor and substitutions
// append the same word, possibly more than once, so the collapse must run
// to a fixed point or Name stops being idempotent.
func collapseTrailingDouble(s string) string {
	words := strings.Fields(s)
	n := len(words)
	for n >= 2 && words[n-1] == words[n-2] {
		words = words[:n-1]
		n--
	}
	return strings.Join(words, " ")
}
