// Package title derives stable lookup keys from noisy guide-entry titles.
// Everything here is a pure function of its input: the same raw title always
// produces the same key, which is what keeps cache keys stable across runs.
package title

import (
	"regexp"
	"strings"
)

// Pattern compilation for guide title parsing
var (
	// Broadcaster decoration ahead of the real title
	repeatPrefixRe = regexp.MustCompile(`(?i)^(?:all new|all-new|new|premiere|season premiere|live|movie)[\s:\-]+`)

	// Trailing markers appended by guide sources
	trailingMarkerRe = regexp.MustCompile(`(?i)[\s\-]*(?:\((?:r|new|live|hd)\)|\bhd)$`)

	// Season/episode decoration inside a title (S01E04, 1x04, Season 2)
	seasonEpisodeRe = regexp.MustCompile(`(?i)[\s\.\-_]+(?:s\d{1,2}[ex]\d{1,3}|\d{1,2}x\d{1,3}|(?:s|season)[\s\.]?\d{1,2})(?:[\s\.\-_].*)?$`)
	episodeHintRe   = regexp.MustCompile(`(?i)\bs(\d{1,2})[ex](\d{1,3})\b`)

	// Trailing year, bare or parenthesized
	trailingYearRe = regexp.MustCompile(`[\s\-]*[\(\[]?((?:19|20)\d{2})[\)\]]?\s*$`)

	// Key folding
	nonKeyRuneRe   = regexp.MustCompile(`[^a-z0-9 ]`)
	multiSpaceRe   = regexp.MustCompile(` +`)
	innerArticleRe = regexp.MustCompile(`\b(?:the|a|an)\b`)
)

// Variant is one lookup attempt: a key plus an optional year qualifier.
type Variant struct {
	Title string
	Year  string
}

// Key is the derived lookup identity for a raw title.
type Key struct {
	// Primary is the bare normalized key, always tried first.
	Primary string
	// Year is a release-year hint found in the raw title, "" when absent.
	Year string
	// Variants is the ordered lookup sequence, Primary first.
	Variants []Variant
	// Display is the cleaned title kept for provider search queries.
	Display string
}

// Normalize derives the lookup key and its fallback variants from a raw
// guide title.
func Normalize(raw string) Key {
	cleaned := strings.TrimSpace(raw)
	cleaned = repeatPrefixRe.ReplaceAllString(cleaned, "")
	cleaned = trailingMarkerRe.ReplaceAllString(cleaned, "")
	cleaned = seasonEpisodeRe.ReplaceAllString(cleaned, "")

	year := ""
	if m := trailingYearRe.FindStringSubmatch(cleaned); m != nil {
		year = m[1]
		cleaned = strings.TrimSpace(cleaned[:len(cleaned)-len(m[0])])
	}

	cleaned = strings.Trim(cleaned, "-_–—|: ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	key := Key{
		Primary: NormalizeKey(cleaned),
		Year:    year,
		Display: cleaned,
	}
	if key.Primary == "" {
		// Titles made only of stripped runes keep a lowercase fallback so a
		// lookup is still attempted.
		key.Primary = strings.ToLower(cleaned)
	}

	key.Variants = []Variant{{Title: key.Primary}}
	if year != "" {
		key.Variants = append(key.Variants, Variant{Title: key.Primary, Year: year})
	}
	return key
}

// NormalizeKey folds a title into its comparison form: lowercase, articles
// removed, punctuation dropped, whitespace collapsed.
func NormalizeKey(s string) string {
	k := strings.ToLower(s)
	k = strings.TrimPrefix(k, "the ")
	k = nonKeyRuneRe.ReplaceAllString(k, "")
	k = innerArticleRe.ReplaceAllString(k, "")
	k = multiSpaceRe.ReplaceAllString(k, " ")
	return strings.TrimSpace(k)
}

// ParseEpisodeHint extracts a one-based SxxEyy marker from a raw title.
func ParseEpisodeHint(raw string) (season, episode int, ok bool) {
	m := episodeHintRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}
	return atoi(m[1]), atoi(m[2]), true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
