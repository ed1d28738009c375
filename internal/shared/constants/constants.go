package constants

import "time"

const (
	// DefaultTLSPort is the port used for certificate inspection.
	DefaultTLSPort = 443
	// DefaultCheckTimeout bounds each individual checker.
	DefaultCheckTimeout = 8 * time.Second
	// DefaultCacheTTL bounds how long an aggregated verdict is memoized.
	DefaultCacheTTL = 5 * time.Minute
	// TLSSoonExpiryWindow warns operators when a certificate expires inside this window.
	TLSSoonExpiryWindow = 30 * 24 * time.Hour
)

const (
	// HighRiskThreshold and MediumRiskThreshold are the aggregate label cutoffs.
	HighRiskThreshold   = 70
	MediumRiskThreshold = 40

	// WhoisHighRiskThreshold and WhoisSuspiciousThreshold classify the
	// registration checker's local sub-score, distinct from the aggregate.
	WhoisHighRiskThreshold   = 60
	WhoisSuspiciousThreshold = 30
)

const (
	// MaxHomoglyphMatches caps homoglyph findings for payload-size control.
	MaxHomoglyphMatches = 10
	// MaxRequestBodyBytes limits API request bodies.
	MaxRequestBodyBytes = 1 << 20
)
