package snapshot

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical form snapshot dates are stored in.
const DateLayout = "2006-01-02"

var (
	tokenRe   = regexp.MustCompile(`[^A-Za-z0-9]+`)
	digitsRe  = regexp.MustCompile(`^\d+$`)
	dateishRe = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{8}\b`),
		regexp.MustCompile(`\b\d{6}\b`),
		regexp.MustCompile(`\b\d{4}[-_/.\s]\d{1,2}[-_/.\s]\d{1,2}\b`),
		regexp.MustCompile(`\b\d{1,2}[-_/.\s]\d{1,2}[-_/.\s]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*[-_/.\s]?\d{1,2}[-_/.\s]?\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}[-_/.\s]?(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*[-_/.\s]?\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b\d{4}[-_/.\s]?(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*[-_/.\s]?\d{1,2}\b`),
	}
)

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ExtractDate scans a snapshot folder name for an embedded date in a
// broad set of numeric and month-name formats and returns it as
// YYYY-MM-DD, or "" when nothing parses.
//
// When several interpretations are possible the legacy scoring applies,
// in order: prefer a parse landing in the current year, then a parse
// with a 4-digit year, then a candidate containing separators, then the
// shorter candidate. Two-digit years map into [1970, 2069]. This is
// frozen behavior; the reference time is a parameter so the current-year
// preference stays testable.
func ExtractDate(name string, now time.Time) string {
	candidates := dateCandidates(name)
	if len(candidates) == 0 {
		return ""
	}

	currentYear := now.Year()
	yearStr := strconv.Itoa(currentYear)

	// Candidates containing the current year first, then shorter ones;
	// the string tie-break keeps the scan deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		hi, hj := strings.Contains(ci, yearStr), strings.Contains(cj, yearStr)
		if hi != hj {
			return hi
		}
		if len(ci) != len(cj) {
			return len(ci) < len(cj)
		}
		return ci < cj
	})

	var best time.Time
	var bestScore [4]int
	found := false

	for _, cand := range candidates {
		for _, hit := range parseDateCandidate(cand) {
			score := [4]int{1, 1, 1, len(cand)}
			if hit.date.Year() == currentYear {
				score[0] = 0
			}
			if hit.fourDigitYear {
				score[1] = 0
			}
			if strings.ContainsAny(cand, "-_./ ") {
				score[2] = 0
			}
			// Pure 6-digit blobs with the year at the end get a slight
			// edge: users usually encode "...yy" last.
			if len(cand) == 6 && digitsRe.MatchString(cand) && hit.yearLast && score[3] > 0 {
				score[3]--
			}
			if !found || lessScore(score, bestScore) {
				best, bestScore, found = hit.date, score, true
			}
			if score[0] == 0 && score[1] == 0 && score[2] == 0 {
				return best.Format(DateLayout)
			}
		}
	}
	if !found {
		return ""
	}
	return best.Format(DateLayout)
}

func lessScore(a, b [4]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// dateCandidates collects substrings of the folder name worth trying as
// dates: individual tokens, windows of adjacent tokens, and regex
// slices that look date-ish.
func dateCandidates(name string) []string {
	set := map[string]struct{}{}

	var tokens []string
	for _, t := range tokenRe.Split(name, -1) {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	for _, t := range tokens {
		if len(t) >= 4 || digitsRe.MatchString(t) {
			set[t] = struct{}{}
		}
	}
	seps := []string{"-", "_", ".", "/", " "}
	for win := 2; win <= 4; win++ {
		for i := 0; i+win <= len(tokens); i++ {
			window := tokens[i : i+win]
			joined := strings.Join(window, "")
			if len(joined) >= 4 && len(joined) <= 16 {
				set[joined] = struct{}{}
			}
			for _, sep := range seps {
				j := strings.Join(window, sep)
				if len(j) >= 4 && len(j) <= 20 {
					set[j] = struct{}{}
				}
			}
		}
	}
	for _, re := range dateishRe {
		for _, m := range re.FindAllString(name, -1) {
			set[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

type dateHit struct {
	date          time.Time
	fourDigitYear bool
	yearLast      bool
}

// parseDateCandidate returns every valid calendar reading of one
// candidate string.
func parseDateCandidate(cand string) []dateHit {
	parts := splitRuns(cand)
	switch len(parts) {
	case 1:
		if !digitsRe.MatchString(parts[0]) {
			return nil
		}
		return parseDigitBlob(parts[0])
	case 3:
		return parseThreeParts(parts)
	default:
		return nil
	}
}

// splitRuns breaks a candidate into runs of digits and runs of letters.
func splitRuns(s string) []string {
	var parts []string
	var cur strings.Builder
	var curDigit bool
	for _, r := range s {
		isDigit := r >= '0' && r <= '9'
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isDigit && !isAlpha {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			continue
		}
		if cur.Len() > 0 && isDigit != curDigit {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
		curDigit = isDigit
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// parseDigitBlob reads an unseparated 8- or 6-digit blob as
// year-month-day, month-day-year or day-month-year.
func parseDigitBlob(s string) []dateHit {
	var hits []dateHit
	switch len(s) {
	case 8:
		hits = appendHit(hits, s[0:4], s[4:6], s[6:8], true, false)
		hits = appendHit(hits, s[4:8], s[0:2], s[2:4], true, true)
		hits = appendHit(hits, s[4:8], s[2:4], s[0:2], true, true)
	case 6:
		hits = appendHit(hits, s[0:2], s[2:4], s[4:6], false, false)
		hits = appendHit(hits, s[4:6], s[0:2], s[2:4], false, true)
		hits = appendHit(hits, s[4:6], s[2:4], s[0:2], false, true)
	}
	return hits
}

// parseThreeParts reads [a b c] trying year-month-day, month-day-year
// and day-month-year, with numeric or named months.
func parseThreeParts(parts []string) []dateHit {
	var hits []dateHit
	type order struct{ y, m, d int }
	for _, o := range []order{{0, 1, 2}, {2, 0, 1}, {2, 1, 0}} {
		yPart, mPart, dPart := parts[o.y], parts[o.m], parts[o.d]
		if !digitsRe.MatchString(yPart) || !digitsRe.MatchString(dPart) {
			continue
		}
		fourDigit := len(yPart) == 4
		if !fourDigit && len(yPart) != 2 && len(yPart) != 1 {
			continue
		}
		month, ok := parseMonth(mPart)
		if !ok {
			continue
		}
		if h, ok := makeHit(yPart, month, dPart, fourDigit, o.y == 2); ok {
			hits = append(hits, h)
		}
	}
	return hits
}

func parseMonth(s string) (int, bool) {
	if digitsRe.MatchString(s) {
		m, _ := strconv.Atoi(s)
		if m >= 1 && m <= 12 {
			return m, true
		}
		return 0, false
	}
	if len(s) < 3 {
		return 0, false
	}
	if m, ok := monthNames[strings.ToLower(s[:3])]; ok {
		return m, true
	}
	return 0, false
}

func appendHit(hits []dateHit, y, m, d string, fourDigit, yearLast bool) []dateHit {
	month, ok := parseMonth(m)
	if !ok {
		return hits
	}
	if h, ok := makeHit(y, month, d, fourDigit, yearLast); ok {
		hits = append(hits, h)
	}
	return hits
}

func makeHit(yPart string, month int, dPart string, fourDigit, yearLast bool) (dateHit, bool) {
	year, err := strconv.Atoi(yPart)
	if err != nil {
		return dateHit{}, false
	}
	if !fourDigit {
		if year >= 70 {
			year += 1900
		} else {
			year += 2000
		}
	}
	if year < 1900 || year > 2100 {
		return dateHit{}, false
	}
	day, err := strconv.Atoi(dPart)
	if err != nil || day < 1 || day > 31 {
		return dateHit{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return dateHit{}, false
	}
	return dateHit{date: t, fourDigitYear: fourDigit, yearLast: yearLast}, true
}
