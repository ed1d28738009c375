package checker

import (
	"context"
	"sort"
	"strings"
)

// RulesResult reports suspicious-word and brand-impersonation matching over
// the hostname and path.
type RulesResult struct {
	HasSuspiciousWords  bool     `json:"has_suspicious_words"`
	MatchedSuspicious   []string `json:"matched_suspicious"`
	HasBrandWordsInHost bool     `json:"has_brand_words_in_host"`
	MatchedBrands       []string `json:"matched_brands"`
	PathDepth           int      `json:"path_depth"`
	Errors              []string `json:"errors"`
}

// suspiciousWords are matched against hostname and path combined.
var suspiciousWords = []string{
	"login", "verify", "update", "confirm", "unlock",
	"password", "credential", "billing", "invoice",
	"urgent", "suspend", "limited", "gift", "prize",
	"support", "helpdesk", "secure", "security",
	"account", "wallet",
}

// brandWords are matched against the hostname only. A brand name in the
// host of a domain the brand does not own is a strong impersonation signal.
var brandWords = []string{
	"apple", "microsoft", "google", "facebook", "amazon",
	"paypal", "netflix", "instagram", "whatsapp", "outlook",
}

// RulesChecker applies the static content rules.
type RulesChecker struct{}

func (c *RulesChecker) Name() string { return "check rules" }

func (c *RulesChecker) Check(ctx context.Context, target string) RulesResult {
	out := RulesResult{
		MatchedSuspicious: []string{},
		MatchedBrands:     []string{},
		Errors:            []string{},
	}

	info := ParseTarget(target)
	lowHost := strings.ToLower(info.Host)
	lowPath := strings.ToLower(info.Path)
	text := lowHost + " " + lowPath

	matched := map[string]bool{}
	for _, w := range suspiciousWords {
		if strings.Contains(text, w) {
			matched[w] = true
		}
	}
	for w := range matched {
		out.MatchedSuspicious = append(out.MatchedSuspicious, w)
	}
	sort.Strings(out.MatchedSuspicious)

	brands := map[string]bool{}
	for _, b := range brandWords {
		if strings.Contains(lowHost, b) {
			brands[b] = true
		}
	}
	for b := range brands {
		out.MatchedBrands = append(out.MatchedBrands, b)
	}
	sort.Strings(out.MatchedBrands)

	out.HasSuspiciousWords = len(out.MatchedSuspicious) > 0
	out.HasBrandWordsInHost = len(out.MatchedBrands) > 0

	for _, part := range strings.Split(info.Path, "/") {
		if part != "" {
			out.PathDepth++
		}
	}

	return out
}
