package checker

import (
	consts "github.com/khanhnv2901/urlrisk/internal/shared/constants"
)

// Verdict is the aggregated risk assessment for one URL.
type Verdict struct {
	Score   int      `json:"risk_score"`
	Label   string   `json:"label"`
	Reasons []string `json:"reasons"`
}

// ComputeRisk folds the checker outputs into one additive score. Signals
// are computed once from already-derived fields; a nil checker result
// simply skips its signals. Emission order is fixed: SSL, then WHOIS, then
// IDN, then content rules.
func ComputeRisk(ssl *SSLResult, whoisRecord *WhoisResult, idn *IDNResult, rules *RulesResult) Verdict {
	score := 0
	reasons := []string{}

	if ssl != nil {
		if !ssl.HTTPSOK {
			score += 30
			reasons = append(reasons, "no_https")
		}
		if ssl.Expired != nil && *ssl.Expired {
			score += 30
			reasons = append(reasons, "expired_cert")
		}
	}

	if whoisRecord != nil && whoisRecord.AgeDays != nil {
		switch age := *whoisRecord.AgeDays; {
		case age < 30:
			score += 30
			reasons = append(reasons, "very_new_domain")
		case age < 180:
			score += 15
			reasons = append(reasons, "new_domain")
		}
	}

	if idn != nil {
		if idn.IsIDN {
			score += 10
			reasons = append(reasons, "idn_domain")
		}
		if idn.MixedConfusableScripts {
			score += 25
			reasons = append(reasons, "mixed_scripts")
		}
	}

	if rules != nil {
		if rules.HasSuspiciousWords {
			score += 15
			reasons = append(reasons, "phishy_words")
		}
		if rules.HasBrandWordsInHost {
			score += 20
			reasons = append(reasons, "brand_in_host")
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var label string
	switch {
	case score >= consts.HighRiskThreshold:
		label = "High Risk"
	case score >= consts.MediumRiskThreshold:
		label = "Medium Risk"
	default:
		label = "Low Risk"
	}

	return Verdict{Score: score, Label: label, Reasons: reasons}
}
