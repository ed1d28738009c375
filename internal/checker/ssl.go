package checker

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	consts "github.com/khanhnv2901/urlrisk/internal/shared/constants"
)

// SSLResult is the structurally complete output of the certificate
// inspector. Every field is present even on total failure; failures are
// reported through Errors, never as a returned error.
type SSLResult struct {
	Hostname  string    `json:"hostname"`
	Port      int       `json:"port"`
	CheckedAt time.Time `json:"checked_at"`

	// Connection status
	HTTPSOK      bool  `json:"https_ok"`
	HTTPStatus   int   `json:"http_status,omitempty"`
	HTTPRedirect *bool `json:"http_redirect"` // http -> https redirect, nil when not probed
	HandshakeOK  bool  `json:"ssl_handshake_successful"`

	// Validity window
	Expired         *bool      `json:"expired"`
	ExpiresSoon     *bool      `json:"expires_soon"`
	NotBefore       *time.Time `json:"not_before"`
	ExpiresOn       *time.Time `json:"expires_on"`
	DaysUntilExpiry *int       `json:"days_until_expiry"`

	// Identity
	SubjectCN    string `json:"subject_cn"`
	SubjectOrg   string `json:"subject_org"`
	IssuerCN     string `json:"issuer_cn"`
	IssuerOrg    string `json:"issuer_org"`
	SerialNumber string `json:"serial_number"`

	// Trust
	SelfSigned    *bool `json:"self_signed"` // nil when subject/issuer unavailable
	CATrusted     bool  `json:"ca_trusted"`
	ChainComplete bool  `json:"certificate_chain_complete"`
	ChainLength   int   `json:"chain_length"`

	// Technical details
	TLSVersion         string `json:"tls_version"`
	CipherSuite        string `json:"cipher_suite"`
	KeyAlgorithm       string `json:"key_algorithm"`
	KeySize            int    `json:"key_size"`
	KeyCurve           string `json:"key_curve,omitempty"`
	SignatureAlgorithm string `json:"signature_algorithm"`

	// Domain coverage
	HostnameMatch bool     `json:"hostname_match"`
	SANDomains    []string `json:"san_domains"`
	WildcardCert  bool     `json:"wildcard_cert"`

	Errors []string `json:"errors"`
}

// SSLChecker inspects the TLS posture of a host.
type SSLChecker struct {
	Port    int
	Timeout time.Duration
	// HTTPClient is used for the HTTPS connectivity probe. Lazily
	// constructed when nil.
	HTTPClient *http.Client
}

func (c *SSLChecker) Name() string { return "check ssl" }

// Check connects twice: first without verification so certificate fields can
// be harvested from untrusted or self-signed hosts, then with full
// verification to determine trust, hostname match and chain completeness.
// A single strict connection would abort before any field extraction.
func (c *SSLChecker) Check(ctx context.Context, target string) SSLResult {
	port := c.Port
	if port == 0 {
		port = consts.DefaultTLSPort
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = consts.DefaultCheckTimeout
	}

	result := SSLResult{
		Port:       port,
		CheckedAt:  time.Now().UTC(),
		SANDomains: []string{},
		Errors:     []string{},
	}

	hostname := NormalizeHostname(ExtractHost(target))
	if hostname == "" {
		result.Hostname = target
		result.Errors = append(result.Errors, "invalid_hostname_format")
		return result
	}
	result.Hostname = hostname

	addr := net.JoinHostPort(hostname, fmt.Sprintf("%d", port))
	dialer := &net.Dialer{Timeout: timeout}

	// Phase 1: permissive connection to extract certificate data
	insecureConf := &tls.Config{
		ServerName:         hostname,
		InsecureSkipVerify: true, // #nosec G402 -- field harvesting from untrusted hosts is the point
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, insecureConf)
	if err != nil {
		result.Errors = append(result.Errors, classifyDialError(err))
	} else {
		state := conn.ConnectionState()
		result.HandshakeOK = true
		result.TLSVersion = tlsVersionString(state.Version)
		result.CipherSuite = tls.CipherSuiteName(state.CipherSuite)
		result.ChainLength = len(state.PeerCertificates)
		if len(state.PeerCertificates) > 0 {
			extractCertificate(state.PeerCertificates[0], &result)
			result.HostnameMatch = matchesCertificate(hostname, state.PeerCertificates[0])
		} else {
			result.Errors = append(result.Errors, "no_certificate_data_available")
		}
		_ = conn.Close()
	}

	// Phase 2: strict verification determines trust independently
	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	verifyDialer := &tls.Dialer{
		NetDialer: dialer,
		Config:    &tls.Config{ServerName: hostname},
	}
	verifyConn, verifyErr := verifyDialer.DialContext(verifyCtx, "tcp", addr)
	if verifyErr == nil {
		result.CATrusted = true
		result.ChainComplete = true
		result.HostnameMatch = true
		_ = verifyConn.Close()
	} else if result.HandshakeOK {
		// Only interpret verification failures when the permissive
		// handshake worked; otherwise the host is simply unreachable.
		applyVerificationError(verifyErr, &result)
	}

	// HTTPS connectivity probe plus http->https redirect detection
	c.probeHTTPS(ctx, hostname, &result)

	return result
}

func (c *SSLChecker) probeHTTPS(ctx context.Context, hostname string, result *SSLResult) {
	client := c.HTTPClient
	if client == nil {
		timeout := c.Timeout
		if timeout == 0 {
			timeout = consts.DefaultCheckTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+hostname, nil)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("https_test_error: %v", err))
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		result.Errors = append(result.Errors, classifyDialError(err))
	} else {
		result.HTTPStatus = resp.StatusCode
		result.HTTPSOK = resp.StatusCode < 400
		_ = resp.Body.Close()
	}

	// The redirect probe is best effort and must not follow redirects
	noRedirect := &http.Client{
		Timeout: client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+hostname, nil)
	if err != nil {
		return
	}
	httpResp, err := noRedirect.Do(httpReq)
	if err != nil {
		return
	}
	defer httpResp.Body.Close()
	switch httpResp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		redirected := strings.HasPrefix(httpResp.Header.Get("Location"), "https://")
		result.HTTPRedirect = &redirected
	}
}

// expiringSoon reports whether a still-valid certificate falls inside the
// renewal warning window.
func expiringSoon(notAfter, now time.Time) bool {
	return notAfter.After(now) && notAfter.Sub(now) <= consts.TLSSoonExpiryWindow
}

// extractCertificate fills identity, validity and key details from the leaf.
func extractCertificate(cert *x509.Certificate, result *SSLResult) {
	now := time.Now().UTC()

	notBefore := cert.NotBefore.UTC()
	notAfter := cert.NotAfter.UTC()
	expired := notAfter.Before(now)
	days := int(time.Until(notAfter).Hours() / 24)

	soon := expiringSoon(notAfter, now)

	result.NotBefore = &notBefore
	result.ExpiresOn = &notAfter
	result.Expired = &expired
	result.ExpiresSoon = &soon
	result.DaysUntilExpiry = &days

	result.SubjectCN = cert.Subject.CommonName
	if len(cert.Subject.Organization) > 0 {
		result.SubjectOrg = cert.Subject.Organization[0]
	}
	result.IssuerCN = cert.Issuer.CommonName
	if len(cert.Issuer.Organization) > 0 {
		result.IssuerOrg = cert.Issuer.Organization[0]
	}
	if cert.SerialNumber != nil {
		result.SerialNumber = cert.SerialNumber.String()
	}
	result.SelfSigned = detectSelfSigned(cert)
	result.SignatureAlgorithm = cert.SignatureAlgorithm.String()

	switch key := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		result.KeyAlgorithm = "RSA"
		result.KeySize = key.N.BitLen()
	case *ecdsa.PublicKey:
		result.KeyAlgorithm = "EC"
		result.KeySize = key.Curve.Params().BitSize
		result.KeyCurve = key.Curve.Params().Name
	case ed25519.PublicKey:
		result.KeyAlgorithm = "Ed25519"
		result.KeySize = 256
	default:
		result.KeyAlgorithm = cert.PublicKeyAlgorithm.String()
	}

	result.SANDomains = append(result.SANDomains, cert.DNSNames...)
	for _, san := range cert.DNSNames {
		if strings.HasPrefix(san, "*.") {
			result.WildcardCert = true
			break
		}
	}
}

// detectSelfSigned compares subject and issuer CN (and organization when both
// carry one). nil means unknown, which is distinct from false.
func detectSelfSigned(cert *x509.Certificate) *bool {
	subjectCN := strings.ToLower(strings.TrimSpace(cert.Subject.CommonName))
	issuerCN := strings.ToLower(strings.TrimSpace(cert.Issuer.CommonName))
	if subjectCN == "" || issuerCN == "" {
		return nil
	}

	selfSigned := subjectCN == issuerCN
	if selfSigned && len(cert.Subject.Organization) > 0 && len(cert.Issuer.Organization) > 0 {
		selfSigned = strings.EqualFold(cert.Subject.Organization[0], cert.Issuer.Organization[0])
	}
	return &selfSigned
}

// matchesCertificate checks the hostname against the CN first, then each SAN.
func matchesCertificate(hostname string, cert *x509.Certificate) bool {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return false
	}
	if matchHostnamePattern(hostname, strings.ToLower(strings.TrimSpace(cert.Subject.CommonName))) {
		return true
	}
	for _, san := range cert.DNSNames {
		if matchHostnamePattern(hostname, strings.ToLower(strings.TrimSpace(san))) {
			return true
		}
	}
	return false
}

// matchHostnamePattern implements exact and single-level wildcard matching:
// *.example.com covers example.com and www.example.com but not
// a.b.example.com.
func matchHostnamePattern(hostname, pattern string) bool {
	if pattern == "" {
		return false
	}
	if hostname == pattern {
		return true
	}
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}
	base := pattern[2:]
	if base == "" {
		return false
	}
	if hostname == base {
		return true
	}
	if strings.HasSuffix(hostname, "."+base) {
		sub := strings.TrimSuffix(hostname, "."+base)
		return !strings.Contains(sub, ".")
	}
	return false
}

// applyVerificationError maps strict-handshake failures onto derived flags
// instead of failing the whole check.
func applyVerificationError(err error, result *SSLResult) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "self signed") || strings.Contains(msg, "self-signed"):
		selfSigned := true
		result.SelfSigned = &selfSigned
		result.Errors = append(result.Errors, fmt.Sprintf("self_signed_cert: %v", err))
	case strings.Contains(msg, "hostname") || strings.Contains(msg, "certificate name"):
		result.HostnameMatch = false
		result.Errors = append(result.Errors, fmt.Sprintf("hostname_mismatch: %v", err))
	case strings.Contains(msg, "expired"):
		expired := true
		result.Expired = &expired
		result.Errors = append(result.Errors, fmt.Sprintf("certificate_expired: %v", err))
	default:
		result.Errors = append(result.Errors, fmt.Sprintf("cert_verify_error: %v", err))
	}
}

// classifyDialError buckets transport failures into the fixed error taxonomy.
func classifyDialError(err error) string {
	msg := strings.ToLower(err.Error())
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("dns_resolution_error: %v", err)
	case strings.Contains(msg, "connection refused"):
		return fmt.Sprintf("connection_refused: %v", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "connection_timeout"
	default:
		return fmt.Sprintf("network_error: %v", err)
	}
}

// tlsVersionString converts TLS version constant to string
func tlsVersionString(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("Unknown (0x%04x)", version)
	}
}
