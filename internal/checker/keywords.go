package checker

import (
	"context"
	"strings"
)

// KeywordResult reports keyword matches over the full URL plus the
// checker-local risk contribution.
type KeywordResult struct {
	URL           string   `json:"url"`
	KeywordsFound []string `json:"keywords_found"`
	RiskScore     int      `json:"risk_score"`
	RiskFactors   []string `json:"risk_factors"`
	Errors        []string `json:"errors"`
}

// commonKeywords are generic terms that are never risky on their own; they
// only add weight in combination with a high-risk match.
var commonKeywords = []string{
	"login", "signin", "sign-in", "sign_in", "log-in", "log_in",
}

// highRiskKeywords are red-flag phishing terms.
var highRiskKeywords = []string{
	"secure-login",
	"update-account",
	"verify",
	"reset-password",
	"free-gift",
	"account-verify",
	"confirm",
	"bank-login",
	"urgent",
	"unauthorized",
	"account-locked",
	"account-suspend",
	"validate",
	"credential",
	"reactivate",
}

// KeywordChecker scans URLs for phishing vocabulary. Scoring is
// deliberately conservative: "login" alone scores zero.
type KeywordChecker struct{}

func (c *KeywordChecker) Name() string { return "check keywords" }

func (c *KeywordChecker) Check(ctx context.Context, target string) KeywordResult {
	out := KeywordResult{
		URL:           target,
		KeywordsFound: []string{},
		RiskFactors:   []string{},
		Errors:        []string{},
	}

	lower := strings.ToLower(target)

	var foundCommon, foundHigh []string
	for _, kw := range commonKeywords {
		if strings.Contains(lower, kw) {
			foundCommon = append(foundCommon, kw)
		}
	}
	for _, kw := range highRiskKeywords {
		if strings.Contains(lower, kw) {
			foundHigh = append(foundHigh, kw)
		}
	}
	out.KeywordsFound = append(out.KeywordsFound, foundCommon...)
	out.KeywordsFound = append(out.KeywordsFound, foundHigh...)

	if len(foundHigh) > 0 {
		out.RiskScore += 40 + (len(foundHigh)-1)*10
		out.RiskFactors = append(out.RiskFactors, "High-risk keyword(s): "+strings.Join(foundHigh, ", "))
	}
	if len(foundCommon) > 0 {
		if len(foundHigh) == 0 {
			out.RiskFactors = append(out.RiskFactors, "Common term(s) found (e.g. 'login'), but not risky alone.")
		} else {
			out.RiskScore += 10
			out.RiskFactors = append(out.RiskFactors, "Combination of common and high-risk keywords increases suspicion.")
		}
	}

	return out
}
