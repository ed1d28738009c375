package checker

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"testing"
	"time"
)

func TestMatchHostnamePattern_Exact(t *testing.T) {
	if !matchHostnamePattern("example.com", "example.com") {
		t.Error("expected exact match")
	}
	if matchHostnamePattern("example.com", "other.com") {
		t.Error("unexpected match")
	}
}

func TestMatchHostnamePattern_Wildcard(t *testing.T) {
	// *.example.com covers the apex and single-label subdomains only
	if !matchHostnamePattern("example.com", "*.example.com") {
		t.Error("wildcard should cover the apex domain")
	}
	if !matchHostnamePattern("www.example.com", "*.example.com") {
		t.Error("wildcard should cover single-label subdomains")
	}
	if matchHostnamePattern("a.b.example.com", "*.example.com") {
		t.Error("wildcard must not cover multi-label subdomains")
	}
	if matchHostnamePattern("notexample.com", "*.example.com") {
		t.Error("wildcard must not cover suffix look-alikes")
	}
}

func TestMatchesCertificate_CNThenSAN(t *testing.T) {
	cert := &x509.Certificate{
		Subject:  pkix.Name{CommonName: "example.com"},
		DNSNames: []string{"*.example.org"},
	}
	if !matchesCertificate("example.com", cert) {
		t.Error("expected CN match")
	}
	if !matchesCertificate("www.example.org", cert) {
		t.Error("expected SAN wildcard match")
	}
	if matchesCertificate("www.example.net", cert) {
		t.Error("unexpected match")
	}
}

func TestDetectSelfSigned(t *testing.T) {
	same := &x509.Certificate{
		Subject: pkix.Name{CommonName: "example.com"},
		Issuer:  pkix.Name{CommonName: "example.com"},
	}
	got := detectSelfSigned(same)
	if got == nil || !*got {
		t.Error("expected self-signed true for matching CN")
	}

	different := &x509.Certificate{
		Subject: pkix.Name{CommonName: "example.com"},
		Issuer:  pkix.Name{CommonName: "R3"},
	}
	got = detectSelfSigned(different)
	if got == nil || *got {
		t.Error("expected self-signed false for distinct CN")
	}

	missing := &x509.Certificate{
		Subject: pkix.Name{CommonName: "example.com"},
	}
	if detectSelfSigned(missing) != nil {
		t.Error("expected nil when issuer CN is absent")
	}

	orgMismatch := &x509.Certificate{
		Subject: pkix.Name{CommonName: "example.com", Organization: []string{"Acme"}},
		Issuer:  pkix.Name{CommonName: "example.com", Organization: []string{"Other CA"}},
	}
	got = detectSelfSigned(orgMismatch)
	if got == nil || *got {
		t.Error("matching CN with differing orgs should not count as self-signed")
	}
}

func TestApplyVerificationError(t *testing.T) {
	var res SSLResult
	applyVerificationError(errors.New("x509: certificate is self signed"), &res)
	if res.SelfSigned == nil || !*res.SelfSigned {
		t.Error("expected self_signed flag")
	}

	res = SSLResult{HostnameMatch: true}
	applyVerificationError(errors.New("x509: certificate is valid for other.com, not this hostname"), &res)
	if res.HostnameMatch {
		t.Error("expected hostname_match false")
	}

	res = SSLResult{}
	applyVerificationError(errors.New("x509: certificate has expired or is not yet valid"), &res)
	if res.Expired == nil || !*res.Expired {
		t.Error("expected expired flag")
	}

	res = SSLResult{}
	applyVerificationError(errors.New("x509: certificate signed by unknown authority"), &res)
	if len(res.Errors) != 1 {
		t.Fatalf("expected one generic error entry, got %v", res.Errors)
	}
}

func TestClassifyDialError(t *testing.T) {
	dnsErr := errors.New("dial tcp: lookup nosuchhost.invalid: no such host")
	if got := classifyDialError(dnsErr); got == "" {
		t.Error("expected classification")
	}

	if got := classifyDialError(errors.New("dial tcp 127.0.0.1:443: connect: connection refused")); got[:18] != "connection_refused" {
		t.Errorf("expected connection_refused, got %q", got)
	}

	if got := classifyDialError(errors.New("context deadline exceeded")); got != "connection_timeout" {
		t.Errorf("expected connection_timeout, got %q", got)
	}
}

func TestSSLCheck_InvalidHostname(t *testing.T) {
	c := &SSLChecker{}
	res := c.Check(context.Background(), "..")
	if len(res.Errors) == 0 {
		t.Fatal("expected error entry for invalid hostname")
	}
	if res.Errors[0] != "invalid_hostname_format" {
		t.Errorf("unexpected error: %q", res.Errors[0])
	}
	if res.HandshakeOK {
		t.Error("no handshake should happen for invalid hostname")
	}
}

func TestExpiringSoon(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		notAfter time.Time
		want     bool
	}{
		{"inside warning window", now.AddDate(0, 0, 10), true},
		{"well before expiry", now.AddDate(0, 0, 60), false},
		{"already expired", now.AddDate(0, 0, -1), false},
		{"window boundary", now.Add(30 * 24 * time.Hour), true},
	}
	for _, tc := range tests {
		if got := expiringSoon(tc.notAfter, now); got != tc.want {
			t.Errorf("%s: expiringSoon = %v, want %v", tc.name, got, tc.want)
		}
	}
}
