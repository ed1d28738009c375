package checker

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/bidi"
	"golang.org/x/text/unicode/runenames"

	consts "github.com/khanhnv2901/urlrisk/internal/shared/constants"
)

// IDNResult reports Unicode/IDN confusability analysis for a hostname,
// including the weighted composite legibility score over the full URL.
type IDNResult struct {
	Hostname string `json:"hostname"`

	Punycode               string   `json:"punycode"`
	IsIDN                  bool     `json:"is_idn"`
	Scripts                []string `json:"scripts"`
	MixedConfusableScripts bool     `json:"mixed_confusable_scripts"`
	HasRTL                 bool     `json:"has_rtl"`

	CharacterSetValidation CharacterSetCheck  `json:"character_set_validation"`
	UnicodeDetection       UnicodeDetection   `json:"unicode_detection"`
	PunycodeCheck          PunycodeCheck      `json:"punycode_check"`
	HomographDetection     HomographDetection `json:"homograph_detection"`
	EncodedCharacters      EncodedCharacters  `json:"encoded_characters"`
	InvisibleCharacters    InvisibleCharCheck `json:"invisible_characters"`
	EntropyCheck           EntropyCheck       `json:"entropy_check"`
	URLLegibility          URLLegibility      `json:"url_legibility"`

	ASCIIScore int      `json:"ascii_score"`
	Errors     []string `json:"errors"`
}

type CharacterSetCheck struct {
	AllASCII      bool `json:"all_ascii"`
	NonASCIICount int  `json:"non_ascii_count"`
}

type UnicodeDetection struct {
	Found      bool              `json:"found"`
	Count      int               `json:"count"`
	Characters []UnicodeCharInfo `json:"characters"`
}

type UnicodeCharInfo struct {
	Char        string `json:"char"`
	UnicodeName string `json:"unicode_name"`
	Script      string `json:"script"`
}

type PunycodeCheck struct {
	Found  bool     `json:"found"`
	Labels []string `json:"labels"`
}

type HomographDetection struct {
	Found    bool             `json:"found"`
	Count    int              `json:"count"`
	Patterns []HomographMatch `json:"patterns"`
}

type HomographMatch struct {
	Position    int    `json:"position"`
	Char        string `json:"char"`
	LooksLike   string `json:"looks_like"`
	UnicodeName string `json:"unicode_name"`
}

type EncodedCharacters struct {
	Found   bool     `json:"found"`
	Count   int      `json:"count"`
	Decoded []string `json:"decoded"`
}

type InvisibleCharCheck struct {
	Found bool `json:"found"`
	Count int  `json:"count"`
}

type EntropyCheck struct {
	Entropy float64 `json:"entropy"`
	Level   string  `json:"level"`
}

type URLLegibility struct {
	Readability      string   `json:"readability"`
	PhishingKeywords []string `json:"phishing_keywords"`
}

// homoglyphTable maps ASCII letters to known look-alike code points
// (Cyrillic, Greek, accented Latin, full-width forms).
var homoglyphTable = map[rune][]rune{
	'a': {'а', 'ɑ', 'ά', 'à', 'á', 'â', 'ä', 'ã', 'å'},
	'e': {'е', 'є', 'ẻ', 'é', 'è', 'ê', 'ë'},
	'o': {'ο', 'о', 'ỏ', 'ó', 'ò', 'ô', 'ö', 'õ'},
	'p': {'р'},
	'c': {'с', 'ϲ'},
	'y': {'у', 'ү'},
	'x': {'х'},
	'g': {'ɡ'},
	'l': {'ⅼ', 'ӏ'},
}

// greekLookalikes guesses the ASCII letter a Greek name token imitates, for
// the name-based heuristic pass.
var greekLookalikes = map[string]string{
	"ALPHA": "a", "BETA": "b", "EPSILON": "e", "ETA": "n", "IOTA": "i",
	"KAPPA": "k", "NU": "v", "OMICRON": "o", "RHO": "p", "TAU": "t",
	"UPSILON": "y", "CHI": "x", "SIGMA": "o",
}

// zeroWidthRunes are invisible characters abused to break up keyword
// detection while leaving the rendered hostname unchanged.
var zeroWidthRunes = []rune{'\u200b', '\u200c', '\u200d', '\u2060', '\ufeff'}

// scriptFamilies are matched against canonical Unicode character names.
var scriptFamilies = []string{
	"LATIN", "CYRILLIC", "GREEK", "HEBREW", "ARABIC",
	"DEVANAGARI", "HIRAGANA", "KATAKANA", "HANGUL", "CJK",
}

// confusableScripts overlap visually with Latin and are the usual vehicles
// for homograph spoofing.
var confusableScripts = map[string]bool{"Latin": true, "Cyrillic": true, "Greek": true}

// hostPhishingKeywords trigger the legibility penalty when present in the
// hostname itself.
var hostPhishingKeywords = []string{
	"login", "signin", "secure", "verify", "account",
	"update", "confirm", "bank", "password",
}

// Composite weights over the eight sub-checks. They sum to 1.
const (
	weightCharacterSet = 0.20
	weightUnicode      = 0.20
	weightPunycode     = 0.15
	weightHomograph    = 0.20
	weightEncoded      = 0.10
	weightInvisible    = 0.10
	weightEntropy      = 0.05
	weightLegibility   = 0.10

	phishingKeywordPenalty = 50
)

// IDNChecker analyzes hostnames for Unicode-based deception.
type IDNChecker struct{}

func (c *IDNChecker) Name() string { return "check idn" }

// Check runs the confusability analysis. It never fails: malformed input
// yields a report with Errors populated and neutral flags.
func (c *IDNChecker) Check(ctx context.Context, target string) IDNResult {
	hostname := NormalizeHostname(ExtractHost(target))
	fullURL := target
	if hostname == "" {
		hostname = target
	}

	out := IDNResult{
		Hostname: hostname,
		Scripts:  []string{},
		Errors:   []string{},
	}

	c.analyzeScripts(hostname, &out)
	c.analyzeASCII(hostname, fullURL, &out)
	out.ASCIIScore = compositeScore(&out)
	return out
}

// analyzeScripts handles punycode conversion, per-character script
// classification and RTL detection on the U-label form.
func (c *IDNChecker) analyzeScripts(hostname string, out *IDNResult) {
	ace, err := idna.Lookup.ToASCII(hostname)
	if err != nil {
		// Retry with the lenient profile; registration-invalid names still
		// deserve analysis.
		ace, err = idna.ToASCII(hostname)
	}
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("idn_error: %v", err))
	} else {
		out.Punycode = ace
		for _, label := range strings.Split(ace, ".") {
			if strings.HasPrefix(label, "xn--") {
				out.IsIDN = true
				out.PunycodeCheck.Found = true
				out.PunycodeCheck.Labels = append(out.PunycodeCheck.Labels, label)
			}
		}
	}

	scripts := map[string]bool{}
	for _, r := range hostname {
		if r == '.' {
			continue
		}
		if unicode.In(r, unicode.C) {
			continue
		}
		scripts[scriptOf(r)] = true

		props, _ := bidi.LookupRune(r)
		switch props.Class() {
		case bidi.R, bidi.AL, bidi.RLE, bidi.RLO:
			out.HasRTL = true
		}
	}

	confusable := 0
	for s := range scripts {
		out.Scripts = append(out.Scripts, s)
		if confusableScripts[s] {
			confusable++
		}
	}
	sort.Strings(out.Scripts)
	out.MixedConfusableScripts = confusable > 1
}

// scriptOf infers a character's script family from its canonical Unicode
// name. Characters with no resolvable name are "Unknown".
func scriptOf(r rune) string {
	name := runenames.Name(r)
	if name == "" || strings.HasPrefix(name, "<") {
		return "Unknown"
	}
	for _, family := range scriptFamilies {
		if strings.Contains(name, family) {
			return titleCase(family)
		}
	}
	return "Other"
}

func titleCase(s string) string {
	if s == "CJK" {
		return "Cjk"
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// analyzeASCII fills the eight sub-check reports.
func (c *IDNChecker) analyzeASCII(hostname, fullURL string, out *IDNResult) {
	for _, r := range hostname {
		if r > 127 {
			out.CharacterSetValidation.NonASCIICount++
			out.UnicodeDetection.Found = true
			out.UnicodeDetection.Count++
			if len(out.UnicodeDetection.Characters) < consts.MaxHomoglyphMatches {
				out.UnicodeDetection.Characters = append(out.UnicodeDetection.Characters, UnicodeCharInfo{
					Char:        string(r),
					UnicodeName: runenames.Name(r),
					Script:      scriptOf(r),
				})
			}
		}
	}
	out.CharacterSetValidation.AllASCII = out.CharacterSetValidation.NonASCIICount == 0

	out.HomographDetection = detectHomographs(hostname)

	out.EncodedCharacters = detectEncoded(fullURL)

	for _, r := range hostname {
		for _, zw := range zeroWidthRunes {
			if r == zw {
				out.InvisibleCharacters.Found = true
				out.InvisibleCharacters.Count++
			}
		}
	}

	out.EntropyCheck = computeEntropy(hostname)

	lower := strings.ToLower(hostname)
	for _, kw := range hostPhishingKeywords {
		if strings.Contains(lower, kw) {
			out.URLLegibility.PhishingKeywords = append(out.URLLegibility.PhishingKeywords, kw)
		}
	}
	if len(out.URLLegibility.PhishingKeywords) > 0 {
		out.URLLegibility.Readability = "Contains phishing keywords"
	} else {
		out.URLLegibility.Readability = "Readable and structured"
	}
}

// detectHomographs merges the direct-table pass and the name-based heuristic
// pass into one result, capped to the first matches.
func detectHomographs(hostname string) HomographDetection {
	det := HomographDetection{}
	seen := map[int]bool{}

	record := func(pos int, r rune, looksLike string) {
		if seen[pos] {
			return
		}
		seen[pos] = true
		det.Count++
		if len(det.Patterns) < consts.MaxHomoglyphMatches {
			det.Patterns = append(det.Patterns, HomographMatch{
				Position:    pos,
				Char:        string(r),
				LooksLike:   looksLike,
				UnicodeName: runenames.Name(r),
			})
		}
	}

	for pos, r := range hostname {
		// Pass 1: direct look-alike table.
		matched := false
		for ascii, variants := range homoglyphTable {
			for _, v := range variants {
				if r == v {
					record(pos, r, string(ascii))
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched || r <= 127 {
			continue
		}

		// Pass 2: name heuristic for non-ASCII characters in visually
		// overlapping ranges.
		name := runenames.Name(r)
		for _, family := range []string{"CYRILLIC", "GREEK", "ARABIC", "FULLWIDTH", "HALFWIDTH"} {
			if !strings.Contains(name, family) {
				continue
			}
			if guess := guessLookalike(name); guess != "" {
				record(pos, r, guess)
			}
			break
		}
	}

	det.Found = det.Count > 0
	return det
}

// guessLookalike extracts a probable ASCII equivalent from a Unicode
// character name ("CYRILLIC SMALL LETTER A" -> "a", Greek letter names via
// the curated table).
func guessLookalike(name string) string {
	if idx := strings.Index(name, "LETTER "); idx >= 0 {
		token := name[idx+len("LETTER "):]
		if cut := strings.IndexByte(token, ' '); cut >= 0 {
			token = token[:cut]
		}
		if len(token) == 1 && token[0] >= 'A' && token[0] <= 'Z' {
			return strings.ToLower(token)
		}
		if guess, ok := greekLookalikes[token]; ok {
			return guess
		}
	}
	return ""
}

// detectEncoded counts percent-encoded sequences in the full URL and
// records their decoded forms.
func detectEncoded(fullURL string) EncodedCharacters {
	enc := EncodedCharacters{}
	for i := 0; i+2 < len(fullURL); i++ {
		if fullURL[i] != '%' || !isHexDigit(fullURL[i+1]) || !isHexDigit(fullURL[i+2]) {
			continue
		}
		enc.Count++
		if decoded, err := url.QueryUnescape(fullURL[i : i+3]); err == nil && len(enc.Decoded) < consts.MaxHomoglyphMatches {
			enc.Decoded = append(enc.Decoded, decoded)
		}
	}
	enc.Found = enc.Count > 0
	return enc
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// computeEntropy calculates Shannon entropy over the case-folded
// alphanumeric characters of the hostname.
func computeEntropy(hostname string) EntropyCheck {
	counts := map[rune]int{}
	total := 0
	for _, r := range strings.ToLower(hostname) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			counts[r]++
			total++
		}
	}

	entropy := 0.0
	if total > 0 {
		for _, n := range counts {
			p := float64(n) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}
	entropy = math.Round(entropy*100) / 100

	var level string
	switch {
	case entropy < 2:
		level = "Low"
	case entropy < 3:
		level = "Moderate"
	case entropy < 4:
		level = "High"
	default:
		level = "Very High"
	}
	return EntropyCheck{Entropy: entropy, Level: level}
}

// compositeScore folds the eight sub-checks into the 0-100 legibility
// score. The phishing-keyword penalty is subtracted after the weighted sum
// and before clamping, so it can drive the score to zero even when every
// other sub-check is clean.
func compositeScore(out *IDNResult) int {
	sub := func(clean bool) float64 {
		if clean {
			return 100
		}
		return 0
	}

	var entropyScore float64
	switch out.EntropyCheck.Level {
	case "Low":
		entropyScore = 100
	case "Moderate":
		entropyScore = 80
	case "High":
		entropyScore = 50
	default:
		entropyScore = 20
	}

	score := sub(out.CharacterSetValidation.AllASCII)*weightCharacterSet +
		sub(!out.UnicodeDetection.Found)*weightUnicode +
		sub(!out.PunycodeCheck.Found)*weightPunycode +
		sub(!out.HomographDetection.Found)*weightHomograph +
		sub(!out.EncodedCharacters.Found)*weightEncoded +
		sub(!out.InvisibleCharacters.Found)*weightInvisible +
		entropyScore*weightEntropy +
		sub(len(out.URLLegibility.PhishingKeywords) == 0)*weightLegibility

	if len(out.URLLegibility.PhishingKeywords) > 0 {
		score -= phishingKeywordPenalty
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}
