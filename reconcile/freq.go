package reconcile

import (
	"regexp"
	"strings"
)

// Grammar selects how a base frequency is extracted from a relation's
// frequency-identifier value. LTE ("GUtran") and NR managed objects
// decorate the frequency differently.
type Grammar int

const (
	GrammarGU Grammar = iota
	GrammarNR
)

// EmptySentinel stands in for an unextractable or absent frequency so
// it groups as its own category instead of matching anything.
const EmptySentinel = "<empty>"

var (
	nrFreqRe = regexp.MustCompile(`NRFreqRelation\s*=\s*(\d+)`)
	digitsRe = regexp.MustCompile(`\d+`)
)

// BaseFrequency extracts the canonical base-frequency token from a raw
// cell value. It never fails; unparseable input yields "".
//
// GU grammar: the substring before the first hyphen; if that is empty,
// the first run of digits anywhere in the value.
// NR grammar: the digits after a literal "NRFreqRelation="; otherwise
// the before-hyphen rule.
func BaseFrequency(g Grammar, value string) string {
	switch g {
	case GrammarNR:
		if m := nrFreqRe.FindStringSubmatch(value); m != nil {
			return m[1]
		}
		return beforeHyphen(value)
	default:
		if base := beforeHyphen(value); base != "" {
			return base
		}
		return digitsRe.FindString(value)
	}
}

// Sentineled maps "" to EmptySentinel and keeps everything else.
func Sentineled(base string) string {
	if base == "" {
		return EmptySentinel
	}
	return base
}

func beforeHyphen(value string) string {
	base, _, _ := strings.Cut(value, "-")
	return strings.TrimSpace(base)
}
