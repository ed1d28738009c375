package checker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sharederrors "github.com/khanhnv2901/urlrisk/internal/shared/errors"
)

func TestMergeFallback_FirstWriterWins(t *testing.T) {
	primaryDate := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	fallbackDate := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	out := WhoisResult{
		Registrar:    "Primary Registrar",
		CreationDate: &primaryDate,
	}
	fb := &fallbackRecord{
		Registrar:           "Fallback Registrar",
		CreationDate:        &fallbackDate,
		RegistrarIANAID:     "9999",
		RegistrarAbuseEmail: "abuse@fallback.example",
	}
	mergeFallback(&out, fb)

	if out.Registrar != "Primary Registrar" {
		t.Errorf("fallback overwrote registrar: %q", out.Registrar)
	}
	if !out.CreationDate.Equal(primaryDate) {
		t.Errorf("fallback overwrote creation date: %v", out.CreationDate)
	}
	if out.RegistrarIANAID != "9999" {
		t.Errorf("fallback should fill missing IANA id, got %q", out.RegistrarIANAID)
	}
	if out.RegistrarAbuseEmail != "abuse@fallback.example" {
		t.Errorf("fallback should fill missing abuse email, got %q", out.RegistrarAbuseEmail)
	}
}

func TestScoreRegistration_AgeBuckets(t *testing.T) {
	tests := []struct {
		age   int
		score int
	}{
		{10, 40},
		{60, 25},
		{200, 10},
		{400, 0},
	}
	for _, tc := range tests {
		creation := time.Now().UTC().AddDate(0, 0, -tc.age)
		expiry := time.Now().UTC().AddDate(1, 0, 0)
		out := WhoisResult{
			Registrar:      "Some Registrar",
			CreationDate:   &creation,
			ExpirationDate: &expiry,
		}
		deriveAge(&out)
		scoreRegistration(&out)
		if out.RiskScore != tc.score {
			t.Errorf("age %d days: score = %d, want %d", tc.age, out.RiskScore, tc.score)
		}
	}
}

func TestScoreRegistration_MissingDataAndStatuses(t *testing.T) {
	out := WhoisResult{
		DNSSEC:   "unsigned",
		Statuses: []string{"client hold"},
	}
	scoreRegistration(&out)
	// missing registrar 10 + missing creation 20 + dnssec 5 + hold 30
	if out.RiskScore != 65 {
		t.Errorf("score = %d, want 65", out.RiskScore)
	}
	if out.Classification != "High Risk" {
		t.Errorf("classification = %q, want High Risk", out.Classification)
	}
}

func TestScoreRegistration_Classification(t *testing.T) {
	creation := time.Now().UTC().AddDate(0, 0, -60)
	expiry := time.Now().UTC().AddDate(1, 0, 0)
	out := WhoisResult{
		Registrar:      "Some Registrar",
		CreationDate:   &creation,
		ExpirationDate: &expiry,
		Registrant:     "Domains By Proxy, LLC - Whois Privacy Service",
	}
	deriveAge(&out)
	scoreRegistration(&out)
	// age<90 25 + privacy 15 = 40
	if out.RiskScore != 40 {
		t.Errorf("score = %d, want 40", out.RiskScore)
	}
	if out.Classification != "Suspicious" {
		t.Errorf("classification = %q, want Suspicious", out.Classification)
	}
}

func TestDetectPrivacy(t *testing.T) {
	if !detectPrivacy("REDACTED FOR PRIVACY") {
		t.Error("expected privacy detection")
	}
	if !detectPrivacy("Contact Privacy Inc.") {
		t.Error("expected privacy detection")
	}
	if detectPrivacy("Example Corp") {
		t.Error("unexpected privacy detection")
	}
	if detectPrivacy("") {
		t.Error("empty registrant is not privacy-protected")
	}
}

func TestParseWhoisDate_Layouts(t *testing.T) {
	inputs := []string{
		"2020-06-01T00:00:00Z",
		"2020-06-01 00:00:00",
		"2020-06-01",
		"01-Jun-2020",
		"2020.06.01",
	}
	want := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range inputs {
		got := parseWhoisDate(in, nil)
		if got == nil {
			t.Errorf("parseWhoisDate(%q) = nil", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseWhoisDate(%q) = %v, want %v", in, got, want)
		}
	}
	if parseWhoisDate("not a date", nil) != nil {
		t.Error("expected nil for unparseable date")
	}
}

func TestApplyRDAP(t *testing.T) {
	signed := false
	record := &rdapDomain{
		Handle:  "2336799_DOMAIN_COM-VRSN",
		LDHName: "EXAMPLE.COM",
		Status:  []string{"client delete prohibited"},
		Events: []rdapEvent{
			{EventAction: "registration", EventDate: time.Date(1995, 8, 14, 4, 0, 0, 0, time.UTC)},
			{EventAction: "expiration", EventDate: time.Date(2026, 8, 13, 4, 0, 0, 0, time.UTC)},
		},
		Nameservers: []rdapNameserver{{LDHName: "A.IANA-SERVERS.NET"}},
	}
	record.SecureDNS.DelegationSigned = &signed

	registrarVCard := json.RawMessage(`["vcard",[["version",{},"text","4.0"],["fn",{},"text","Example Registrar LLC"]]]`)
	abuseVCard := json.RawMessage(`["vcard",[["fn",{},"text","Abuse Desk"],["email",{},"text","abuse@registrar.example"],["tel",{},"uri","tel:+1.5555551212"]]]`)
	record.Entities = []rdapEntity{
		{
			Roles:     []string{"registrar"},
			VCard:     registrarVCard,
			PublicIDs: []rdapPublicID{{Type: "IANA Registrar ID", Identifier: "376"}},
			Entities: []rdapEntity{
				{Roles: []string{"abuse"}, VCard: abuseVCard},
			},
		},
	}

	out := WhoisResult{}
	applyRDAP(record, &out)

	if out.Domain != "example.com" {
		t.Errorf("domain = %q", out.Domain)
	}
	if out.Registrar != "Example Registrar LLC" {
		t.Errorf("registrar = %q", out.Registrar)
	}
	if out.RegistrarIANAID != "376" {
		t.Errorf("iana id = %q", out.RegistrarIANAID)
	}
	if out.RegistrarAbuseEmail != "abuse@registrar.example" {
		t.Errorf("abuse email = %q", out.RegistrarAbuseEmail)
	}
	if out.RegistrarAbusePhone != "+1.5555551212" {
		t.Errorf("abuse phone = %q", out.RegistrarAbusePhone)
	}
	if out.DNSSEC != "unsigned" {
		t.Errorf("dnssec = %q", out.DNSSEC)
	}
	if out.CreationDate == nil || out.CreationDate.Year() != 1995 {
		t.Errorf("creation date = %v", out.CreationDate)
	}
	if len(out.NameServers) != 1 || out.NameServers[0] != "a.iana-servers.net" {
		t.Errorf("nameservers = %v", out.NameServers)
	}
}

func TestFallbackLookup_RegexTier(t *testing.T) {
	raw := strings.Join([]string{
		"Registry Domain ID: 999999_DOMAIN_COM-VRSN",
		"Registrar: Rare Registrar Oy",
		"Registrar IANA ID: 1234",
		"Registrar Abuse Contact Email: abuse@rare.example",
		"Registrar Abuse Contact Phone: +358.5551234",
	}, "\n")

	c := NewWhoisChecker(time.Second)
	c.rawLookup = func(domain string) (string, error) { return raw, nil }

	record, err := c.fallbackLookup("rare.example")
	if err != nil {
		t.Fatalf("fallbackLookup: %v", err)
	}
	if record.Registrar != "Rare Registrar Oy" {
		t.Errorf("registrar = %q", record.Registrar)
	}
	if record.RegistrarIANAID != "1234" {
		t.Errorf("iana id = %q", record.RegistrarIANAID)
	}
	if record.RegistrarAbuseEmail != "abuse@rare.example" {
		t.Errorf("abuse email = %q", record.RegistrarAbuseEmail)
	}
	if record.RegistrarAbusePhone != "+358.5551234" {
		t.Errorf("abuse phone = %q", record.RegistrarAbusePhone)
	}
	if record.RegistryDomainID != "999999_DOMAIN_COM-VRSN" {
		t.Errorf("registry domain id = %q", record.RegistryDomainID)
	}
}

func TestWhoisCheck_RDAPPrimary(t *testing.T) {
	rdapSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/domain/") {
			http.NotFound(w, r)
			return
		}
		resp := map[string]interface{}{
			"handle":  "TEST-1",
			"ldhName": "example.com",
			"status":  []string{"active"},
			"events": []map[string]string{
				{"eventAction": "registration", "eventDate": "2001-01-01T00:00:00Z"},
				{"eventAction": "expiration", "eventDate": "2030-01-01T00:00:00Z"},
			},
			"entities": []map[string]interface{}{
				{
					"roles":      []string{"registrar"},
					"vcardArray": []interface{}{"vcard", []interface{}{[]interface{}{"fn", map[string]string{}, "text", "Test Registrar"}}},
					"publicIds":  []map[string]string{{"type": "IANA Registrar ID", "identifier": "42"}},
				},
			},
		}
		w.Header().Set("Content-Type", "application/rdap+json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer rdapSrv.Close()

	c := NewWhoisChecker(2 * time.Second)
	c.rdap.bootstrapURL = rdapSrv.URL + "/bootstrap-missing"
	c.rdap.fallbackBase = rdapSrv.URL
	c.rawLookup = func(domain string) (string, error) {
		return "Registrar Abuse Contact Email: abuse@test.example\nRegistrar Abuse Contact Phone: +1.5550000", nil
	}

	res := c.Check(context.Background(), "https://www.example.com/login")
	if res.Domain != "example.com" {
		t.Errorf("domain = %q", res.Domain)
	}
	if res.Registrar != "Test Registrar" {
		t.Errorf("registrar = %q", res.Registrar)
	}
	// RDAP left abuse contacts empty, fallback filled them
	if res.RegistrarAbuseEmail != "abuse@test.example" {
		t.Errorf("abuse email = %q", res.RegistrarAbuseEmail)
	}
	if res.AgeDays == nil || *res.AgeDays < 365 {
		t.Errorf("age days = %v", res.AgeDays)
	}
	if res.Classification == "Unknown" {
		t.Error("expected classification to be computed")
	}
}

func TestFallbackLookup_StructuredTier(t *testing.T) {
	raw := strings.Join([]string{
		"Domain Name: rare-example.com",
		"Registry Domain ID: 2336799_DOMAIN_COM-VRSN",
		"Registrar WHOIS Server: whois.rare-registrar.example",
		"Updated Date: 2023-08-14T07:01:44Z",
		"Creation Date: 2020-06-01T00:00:00Z",
		"Registry Expiry Date: 2026-06-01T00:00:00Z",
		"Registrar: Rare Registrar Oy",
		"Registrar IANA ID: 1234",
		"Registrar Abuse Contact Email: abuse@rare.example",
		"Registrar Abuse Contact Phone: +358.5551234",
		"Domain Status: clientTransferProhibited https://icann.org/epp#clientTransferProhibited",
		"Name Server: NS1.RARE-EXAMPLE.COM",
		"DNSSEC: unsigned",
	}, "\n")

	c := NewWhoisChecker(time.Second)
	c.rawLookup = func(domain string) (string, error) { return raw, nil }

	record, err := c.fallbackLookup("rare-example.com")
	if err != nil {
		t.Fatalf("fallbackLookup: %v", err)
	}
	if record.CreationDate == nil || record.CreationDate.Year() != 2020 {
		t.Errorf("creation date = %v", record.CreationDate)
	}
	if record.ExpirationDate == nil || record.ExpirationDate.Year() != 2026 {
		t.Errorf("expiration date = %v", record.ExpirationDate)
	}
	if record.UpdatedDate == nil || record.UpdatedDate.Year() != 2023 {
		t.Errorf("updated date = %v", record.UpdatedDate)
	}
	if record.Registrar != "Rare Registrar Oy" {
		t.Errorf("registrar = %q", record.Registrar)
	}
	if len(record.NameServers) != 1 || record.NameServers[0] != "ns1.rare-example.com" {
		t.Errorf("nameservers = %v", record.NameServers)
	}
}

func TestWhoisCheck_NoRegistrationData(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewWhoisChecker(time.Second)
	c.rdap.bootstrapURL = srv.URL + "/bootstrap-missing"
	c.rdap.fallbackBase = srv.URL
	c.rawLookup = func(domain string) (string, error) {
		return "", errors.New("whois: connection refused")
	}

	res := c.Check(context.Background(), "https://no-data.example")

	found := false
	for _, e := range res.Errors {
		if e == sharederrors.ErrNoRegistrationData.Error() {
			found = true
		}
	}
	if !found {
		t.Errorf("expected no-data error entry, got %v", res.Errors)
	}
}

func TestRDAPDomain_ConcurrentAfterBootstrapFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/domain/") {
			w.Header().Set("Content-Type", "application/rdap+json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ldhName": "example.com"})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newRDAPClient(2 * time.Second)
	c.bootstrapURL = srv.URL + "/bootstrap-missing"
	c.fallbackBase = srv.URL

	// Concurrent lookups sharing one client must be safe even when the
	// bootstrap registry is unreachable.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := c.Domain(context.Background(), "example.com")
			if err != nil {
				t.Errorf("Domain: %v", err)
				return
			}
			if record.LDHName != "example.com" {
				t.Errorf("ldhName = %q", record.LDHName)
			}
		}()
	}
	wg.Wait()
}
