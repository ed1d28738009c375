package checker

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"

	sharederrors "github.com/khanhnv2901/urlrisk/internal/shared/errors"
)

// MLResult is the classifier verdict for one URL. OriginalMLScore is set
// only when the allowlist adjustment fired, so the dampening stays
// transparent to callers.
type MLResult struct {
	Score           int                `json:"score"`
	Label           string             `json:"label"`
	Probability     float64            `json:"probability"`
	Reasons         []string           `json:"reasons"`
	Features        map[string]float64 `json:"features"`
	OriginalMLScore *int               `json:"original_ml_score"`
	Whitelisted     bool               `json:"whitelisted"`
}

// mlModel is the serialized logistic-model artifact: ordered feature names,
// one weight per feature and an intercept.
type mlModel struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
}

var randomTokenRE = regexp.MustCompile(`[A-Za-z0-9]{15,}`)

// legitimateDomains dampen ML scores on major sites to suppress false
// positives. Matching is exact or by subdomain suffix.
var legitimateDomains = map[string]bool{
	"google.com": true, "www.google.com": true, "google.co.uk": true, "google.ca": true, "google.com.au": true,
	"microsoft.com": true, "www.microsoft.com": true, "office.com": true, "outlook.com": true, "live.com": true,
	"apple.com": true, "www.apple.com": true, "icloud.com": true, "appleid.apple.com": true,
	"amazon.com": true, "www.amazon.com": true, "amazon.co.uk": true, "amazon.ca": true,
	"facebook.com": true, "www.facebook.com": true, "fb.com": true,
	"twitter.com": true, "www.twitter.com": true, "x.com": true,
	"linkedin.com": true, "www.linkedin.com": true,
	"github.com": true, "www.github.com": true,
	"paypal.com": true, "www.paypal.com": true,
	"netflix.com": true, "www.netflix.com": true,
	"youtube.com": true, "www.youtube.com": true,
	"instagram.com": true, "www.instagram.com": true,
	"reddit.com": true, "www.reddit.com": true,
	"wikipedia.org": true, "www.wikipedia.org": true,
	"stackoverflow.com": true, "www.stackoverflow.com": true,
	// RFC 2606 reserved domains
	"example.com": true, "www.example.com": true,
	"example.org": true, "www.example.org": true,
	"example.net": true, "www.example.net": true,
}

// MLScorer runs the pretrained phishing classifier. The model artifact is
// loaded lazily exactly once; a missing or corrupt artifact surfaces as
// ErrModelUnavailable so callers can omit the ML signal rather than treat
// the failure as "low risk".
type MLScorer struct {
	ModelPath string

	loadOnce sync.Once
	model    *mlModel
	loadErr  error
}

func NewMLScorer(modelPath string) *MLScorer {
	return &MLScorer{ModelPath: modelPath}
}

func (s *MLScorer) load() (*mlModel, error) {
	s.loadOnce.Do(func() {
		data, err := os.ReadFile(s.ModelPath)
		if err != nil {
			s.loadErr = fmt.Errorf("%w: %v", sharederrors.ErrModelUnavailable, err)
			return
		}
		var m mlModel
		if err := json.Unmarshal(data, &m); err != nil {
			s.loadErr = fmt.Errorf("%w: %v", sharederrors.ErrModelUnavailable, err)
			return
		}
		if len(m.FeatureNames) == 0 || len(m.FeatureNames) != len(m.Weights) {
			s.loadErr = fmt.Errorf("%w: feature/weight shape mismatch", sharederrors.ErrModelUnavailable)
			return
		}
		s.model = &m
	})
	return s.model, s.loadErr
}

// Score builds the fixed-order feature vector from the URL and the other
// checkers' outputs and evaluates the model. Missing source data defaults
// every derived feature to 0; the model never sees absent inputs.
func (s *MLScorer) Score(target string, rules *RulesResult, whoisRecord *WhoisResult) (MLResult, error) {
	model, err := s.load()
	if err != nil {
		return MLResult{}, err
	}

	features := extractFeatures(model, target, rules, whoisRecord)

	z := model.Intercept
	for i, name := range model.FeatureNames {
		z += model.Weights[i] * features[name]
	}
	proba := 1.0 / (1.0 + math.Exp(-z))
	if math.IsNaN(proba) || math.IsInf(proba, 0) {
		return MLResult{}, fmt.Errorf("%w: non-finite probability", sharederrors.ErrScoringFailed)
	}
	score := int(math.Round(proba * 100))

	hostname := strings.ToLower(ExtractHost(target))
	whitelisted := isLegitimateDomain(hostname)

	out := MLResult{
		Probability: proba,
		Features:    features,
		Whitelisted: whitelisted,
		Reasons:     []string{},
	}

	if whitelisted && score > 20 {
		original := score
		score = max(5, min(20, score/3))
		out.OriginalMLScore = &original
		out.Reasons = append(out.Reasons, fmt.Sprintf(
			"Domain is whitelisted as legitimate (original ML score: %d, adjusted to: %d).", original, score))
	}
	out.Score = score

	switch {
	case score >= 70:
		out.Label = "High Risk"
		out.Reasons = append(out.Reasons, "ML model predicts high probability of phishing.")
	case score >= 40:
		out.Label = "Medium Risk"
		out.Reasons = append(out.Reasons, "ML model predicts moderate risk.")
	default:
		out.Label = "Low Risk"
		out.Reasons = append(out.Reasons, "ML model predicts low risk.")
	}

	return out, nil
}

func isLegitimateDomain(hostname string) bool {
	if legitimateDomains[hostname] {
		return true
	}
	for domain := range legitimateDomains {
		if strings.HasSuffix(hostname, "."+domain) {
			return true
		}
	}
	return false
}

// extractFeatures fills the model's declared feature set. Features the
// model does not declare are never computed; declared features with no URL
// counterpart stay 0.
func extractFeatures(model *mlModel, target string, rules *RulesResult, whoisRecord *WhoisResult) map[string]float64 {
	features := make(map[string]float64, len(model.FeatureNames))
	for _, name := range model.FeatureNames {
		features[name] = 0.0
	}
	set := func(name string, v float64) {
		if _, ok := features[name]; ok {
			features[name] = v
		}
	}
	boolF := func(b bool) float64 {
		if b {
			return 1.0
		}
		return 0.0
	}

	info := ParseTarget(target)
	normalized := info.FullURL
	hostname := strings.ToLower(info.Host)
	path := info.Path
	query := info.Query

	var hostParts []string
	for _, part := range strings.Split(hostname, ".") {
		if part != "" {
			hostParts = append(hostParts, part)
		}
	}
	var baseDomain, subdomain string
	switch {
	case len(hostParts) >= 2:
		baseDomain = hostParts[len(hostParts)-2]
	case len(hostParts) == 1:
		baseDomain = hostParts[0]
	}
	if len(hostParts) > 2 {
		subdomain = strings.Join(hostParts[:len(hostParts)-2], ".")
	}

	pathDepth := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			pathDepth++
		}
	}

	numericChars := 0
	for _, r := range normalized {
		if r >= '0' && r <= '9' {
			numericChars++
		}
	}

	queryComponents := 0
	if values, err := url.ParseQuery(query); err == nil {
		queryComponents = len(values)
	}

	set("NumDots", float64(strings.Count(hostname, ".")+strings.Count(path, ".")))
	set("SubdomainLevel", math.Max(float64(len(hostParts)-2), 0))
	set("PathLevel", float64(pathDepth))
	set("UrlLength", float64(len(normalized)))
	set("NumDash", float64(strings.Count(normalized, "-")))
	set("NumDashInHostname", float64(strings.Count(hostname, "-")))
	set("AtSymbol", boolF(strings.Contains(normalized, "@")))
	set("TildeSymbol", boolF(strings.Contains(normalized, "~")))
	set("NumUnderscore", float64(strings.Count(normalized, "_")))
	set("NumPercent", float64(strings.Count(normalized, "%")))
	set("NumQueryComponents", float64(queryComponents))
	set("NumAmpersand", float64(strings.Count(normalized, "&")))
	set("NumHash", float64(strings.Count(normalized, "#")))
	set("NumNumericChars", float64(numericChars))
	set("NoHttps", boolF(info.Scheme != "https"))
	set("RandomString", boolF(randomTokenRE.MatchString(path+query)))
	set("IpAddress", boolF(net.ParseIP(hostname) != nil))
	set("DomainInSubdomains", boolF(subdomain != "" && baseDomain != "" && strings.Contains(subdomain, baseDomain)))
	set("DomainInPaths", boolF(baseDomain != "" && strings.Contains(path, baseDomain)))
	set("HttpsInHostname", boolF(strings.Contains(hostname, "https")))
	set("HostnameLength", float64(len(hostname)))
	set("PathLength", float64(len(path)))
	set("QueryLength", float64(len(query)))
	set("DoubleSlashInPath", boolF(strings.Contains(path, "//")))

	if rules != nil {
		set("NumSensitiveWords", float64(len(rules.MatchedSuspicious)))
		set("EmbeddedBrandName", boolF(rules.HasBrandWordsInHost))
	}
	if whoisRecord != nil && hostname != "" && whoisRecord.Domain != "" {
		set("FrequentDomainNameMismatch", boolF(!strings.HasSuffix(hostname, strings.ToLower(whoisRecord.Domain))))
	}

	// RT variants mirror their base features when the model declares them.
	set("SubdomainLevelRT", features["SubdomainLevel"])
	set("UrlLengthRT", features["UrlLength"])

	return features
}
