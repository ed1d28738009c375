package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	whois "github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	consts "github.com/khanhnv2901/urlrisk/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/urlrisk/internal/shared/errors"
)

// WhoisResult is the structurally complete registration record. All fields
// are always present; lookups that fail leave the documented neutral value
// and append to Errors.
type WhoisResult struct {
	Domain string `json:"domain"`

	Registrar      string     `json:"registrar"`
	CreationDate   *time.Time `json:"creation_date"`
	UpdatedDate    *time.Time `json:"updated_date"`
	ExpirationDate *time.Time `json:"expiration_date"`
	AgeDays        *int       `json:"age_days"`

	PrivacyProtected       bool   `json:"privacy_protected"`
	Registrant             string `json:"registrant"`
	RegistrantOrganization string `json:"registrant_organization"`
	RegistrantCountry      string `json:"registrant_country"`
	AdminEmail             string `json:"admin_email"`
	TechEmail              string `json:"tech_email"`

	NameServers []string `json:"name_servers"`
	Country     string   `json:"country"`
	Statuses    []string `json:"statuses"`
	DNSSEC      string   `json:"dnssec"` // "signed", "unsigned" or ""

	RegistryDomainID    string `json:"registry_domain_id"`
	RegistrarIANAID     string `json:"registrar_iana_id"`
	RegistrarAbuseEmail string `json:"registrar_abuse_email"`
	RegistrarAbusePhone string `json:"registrar_abuse_phone"`

	RiskScore      int      `json:"risk_score"`
	Classification string   `json:"classification"`
	RiskFactors    []string `json:"risk_factors"`
	Errors         []string `json:"errors"`
}

// privacyKeywords flag privacy-protected registrants by substring match.
var privacyKeywords = []string{
	"privacy", "protected", "redacted", "withheld",
	"contact privacy", "whois privacy", "domain privacy",
}

// suspiciousStatuses indicate a domain in a hold or deletion state.
var suspiciousStatuses = []string{"client hold", "server hold", "pending delete"}

// Raw-text fallback patterns for fields structured parsers commonly miss.
var (
	reRegistryDomainID = regexp.MustCompile(`(?i)Registry Domain ID:\s*(.+)`)
	reRegistrar        = regexp.MustCompile(`(?i)Registrar:\s*(.+)`)
	reRegistrarIANAID  = regexp.MustCompile(`(?i)Registrar IANA ID:\s*(.+)`)
	reAbuseEmail       = regexp.MustCompile(`(?i)Registrar Abuse Contact Email:\s*(.+)`)
	reAbusePhone       = regexp.MustCompile(`(?i)Registrar Abuse Contact Phone:\s*(.+)`)
)

// whoisDateLayouts cover the date formats seen in raw WHOIS responses.
var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

// WhoisChecker resolves domain registration metadata via RDAP with a WHOIS
// fallback tier.
type WhoisChecker struct {
	Timeout time.Duration

	rdap *rdapClient
	// rawLookup is the raw WHOIS query, indirected for tests.
	rawLookup func(domain string) (string, error)
}

// NewWhoisChecker wires the RDAP client and the likexian WHOIS transport.
func NewWhoisChecker(timeout time.Duration) *WhoisChecker {
	if timeout == 0 {
		timeout = consts.DefaultCheckTimeout
	}
	return &WhoisChecker{
		Timeout: timeout,
		rdap:    newRDAPClient(timeout),
		rawLookup: func(domain string) (string, error) {
			return whois.Whois(domain)
		},
	}
}

func (c *WhoisChecker) Name() string { return "check whois" }

// Check performs the registration lookup. The primary RDAP path populates
// the record; the WHOIS fallback fires when the primary fails or leaves any
// critical field empty, and only fills fields still missing
// (first-writer-wins).
func (c *WhoisChecker) Check(ctx context.Context, target string) WhoisResult {
	out := WhoisResult{
		NameServers:    []string{},
		Statuses:       []string{},
		RiskFactors:    []string{},
		Errors:         []string{},
		Classification: "Unknown",
	}

	hostname := NormalizeHostname(ExtractHost(target))
	if hostname == "" {
		out.Domain = target
		out.Errors = append(out.Errors, "invalid_hostname_format")
		return out
	}
	domain := RegistrableDomain(hostname)
	out.Domain = domain

	record, err := c.rdap.Domain(ctx, domain)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("rdap_lookup_error: %v", err))
	} else {
		applyRDAP(record, &out)
	}

	if c.missingCriticalFields(&out) {
		fallback, fbErr := c.fallbackLookup(domain)
		if fbErr != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("whois_fallback_error: %v", fbErr))
		} else {
			mergeFallback(&out, fallback)
		}
	}

	if err != nil && out.Registrar == "" && out.CreationDate == nil {
		out.Errors = append(out.Errors, sharederrors.ErrNoRegistrationData.Error())
	}

	deriveAge(&out)
	scoreRegistration(&out)
	return out
}

// missingCriticalFields triggers the fallback tier.
func (c *WhoisChecker) missingCriticalFields(out *WhoisResult) bool {
	return out.Registrar == "" ||
		out.CreationDate == nil ||
		out.RegistrarIANAID == "" ||
		out.RegistrarAbuseEmail == "" ||
		out.RegistrarAbusePhone == ""
}

// applyRDAP maps an RDAP response into the registration record.
func applyRDAP(record *rdapDomain, out *WhoisResult) {
	if name := strings.ToLower(record.LDHName); name != "" {
		out.Domain = name
	}
	out.RegistryDomainID = record.Handle

	if signed := record.SecureDNS.DelegationSigned; signed != nil {
		if *signed {
			out.DNSSEC = "signed"
		} else {
			out.DNSSEC = "unsigned"
		}
	}

	out.CreationDate = record.eventDate("registration")
	out.UpdatedDate = record.eventDate("last changed", "last update of RDAP database")
	out.ExpirationDate = record.eventDate("expiration")

	for _, ns := range record.Nameservers {
		if ns.LDHName != "" {
			out.NameServers = append(out.NameServers, strings.ToLower(ns.LDHName))
		}
	}
	out.Statuses = append(out.Statuses, record.Status...)

	for _, entity := range record.Entities {
		extractEntity(entity, out)
	}
}

// extractEntity walks one RDAP entity (and its children) into the record.
// Existing values always win, matching the first-writer-wins merge policy.
func extractEntity(entity rdapEntity, out *WhoisResult) {
	roles := map[string]bool{}
	for _, role := range entity.Roles {
		roles[strings.ToLower(role)] = true
	}

	name, email, phone, country := parseVCard(entity.VCard)

	if roles["registrar"] {
		if out.Registrar == "" {
			if name != "" {
				out.Registrar = name
			} else if entity.Handle != "" {
				out.Registrar = entity.Handle
			}
		}
		if out.RegistrarIANAID == "" {
			for _, id := range entity.PublicIDs {
				if strings.EqualFold(id.Type, "iana") || strings.Contains(strings.ToLower(id.Type), "iana registrar id") {
					out.RegistrarIANAID = id.Identifier
					break
				}
			}
		}
	}

	if roles["registrant"] {
		if out.Registrant == "" {
			out.Registrant = name
		}
		if out.RegistrantOrganization == "" {
			out.RegistrantOrganization = name
		}
		if out.RegistrantCountry == "" && country != "" {
			out.RegistrantCountry = country
			if out.Country == "" {
				out.Country = country
			}
		}
	}

	if roles["administrative"] || roles["admin"] {
		if out.AdminEmail == "" {
			out.AdminEmail = email
		}
	}
	if roles["technical"] || roles["tech"] {
		if out.TechEmail == "" {
			out.TechEmail = email
		}
	}
	if roles["abuse"] {
		if out.RegistrarAbuseEmail == "" {
			out.RegistrarAbuseEmail = email
		}
		if out.RegistrarAbusePhone == "" {
			out.RegistrarAbusePhone = phone
		}
	}

	for _, child := range entity.Entities {
		extractEntity(child, out)
	}
}

// parseVCard pulls fn, email, tel and country out of a jCard property list.
func parseVCard(raw json.RawMessage) (name, email, phone, country string) {
	for _, prop := range vcardProperties(raw) {
		if len(prop) < 4 {
			continue
		}
		switch vcardString(prop[0]) {
		case "fn":
			if name == "" {
				name = vcardString(prop[3])
			}
		case "email":
			if email == "" {
				email = vcardString(prop[3])
			}
		case "tel":
			if phone == "" {
				phone = strings.TrimPrefix(vcardString(prop[3]), "tel:")
			}
		case "adr":
			var parts []string
			if err := json.Unmarshal(prop[3], &parts); err == nil && len(parts) >= 7 && country == "" {
				country = parts[6]
			}
		}
	}
	return name, email, phone, country
}

// fallbackRecord carries the partially-populated output of the WHOIS
// fallback tier before merging.
type fallbackRecord struct {
	Registrar              string
	CreationDate           *time.Time
	UpdatedDate            *time.Time
	ExpirationDate         *time.Time
	NameServers            []string
	Statuses               []string
	RegistrantOrganization string
	Country                string
	RegistryDomainID       string
	RegistrarIANAID        string
	RegistrarAbuseEmail    string
	RegistrarAbusePhone    string
	DNSSECSigned           *bool
}

// fallbackLookup runs the structured WHOIS parser over a raw query, then
// regex-extracts the fields parsers commonly miss from the raw text.
func (c *WhoisChecker) fallbackLookup(domain string) (*fallbackRecord, error) {
	raw, err := c.rawLookup(domain)
	if err != nil {
		return nil, err
	}

	record := &fallbackRecord{}

	parsed, parseErr := whoisparser.Parse(raw)
	if parseErr == nil {
		if d := parsed.Domain; d != nil {
			record.RegistryDomainID = d.ID
			record.CreationDate = parseWhoisDate(d.CreatedDate, d.CreatedDateInTime)
			record.UpdatedDate = parseWhoisDate(d.UpdatedDate, d.UpdatedDateInTime)
			record.ExpirationDate = parseWhoisDate(d.ExpirationDate, d.ExpirationDateInTime)
			for _, ns := range d.NameServers {
				record.NameServers = append(record.NameServers, strings.ToLower(ns))
			}
			record.Statuses = append(record.Statuses, d.Status...)
			dnssec := d.DNSSec
			record.DNSSECSigned = &dnssec
		}
		if r := parsed.Registrar; r != nil {
			record.Registrar = r.Name
			record.RegistrarIANAID = r.ID
			record.RegistrarAbuseEmail = r.Email
			record.RegistrarAbusePhone = r.Phone
		}
		if r := parsed.Registrant; r != nil {
			record.RegistrantOrganization = r.Organization
			record.Country = r.Country
		}
	}

	// Regex pass over the raw text for anything still missing.
	if record.RegistryDomainID == "" {
		record.RegistryDomainID = regexExtract(reRegistryDomainID, raw)
	}
	if record.Registrar == "" {
		record.Registrar = regexExtract(reRegistrar, raw)
	}
	if record.RegistrarIANAID == "" {
		record.RegistrarIANAID = regexExtract(reRegistrarIANAID, raw)
	}
	if record.RegistrarAbuseEmail == "" {
		record.RegistrarAbuseEmail = regexExtract(reAbuseEmail, raw)
	}
	if record.RegistrarAbusePhone == "" {
		record.RegistrarAbusePhone = regexExtract(reAbusePhone, raw)
	}

	return record, nil
}

func regexExtract(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func parseWhoisDate(value string, parsed *time.Time) *time.Time {
	if parsed != nil && !parsed.IsZero() {
		utc := parsed.UTC()
		return &utc
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// mergeFallback copies fallback values into the record field by field.
// Primary data is never overwritten: a field is written only when the
// primary left it empty.
func mergeFallback(out *WhoisResult, fb *fallbackRecord) {
	if out.Registrar == "" {
		out.Registrar = fb.Registrar
	}
	if out.CreationDate == nil {
		out.CreationDate = fb.CreationDate
	}
	if out.UpdatedDate == nil {
		out.UpdatedDate = fb.UpdatedDate
	}
	if out.ExpirationDate == nil {
		out.ExpirationDate = fb.ExpirationDate
	}
	if len(out.NameServers) == 0 {
		out.NameServers = append(out.NameServers, fb.NameServers...)
	}
	if len(out.Statuses) == 0 {
		out.Statuses = append(out.Statuses, fb.Statuses...)
	}
	if out.RegistrantOrganization == "" {
		out.RegistrantOrganization = fb.RegistrantOrganization
	}
	if out.Country == "" {
		out.Country = fb.Country
		if out.RegistrantCountry == "" {
			out.RegistrantCountry = fb.Country
		}
	}
	if out.RegistryDomainID == "" {
		out.RegistryDomainID = fb.RegistryDomainID
	}
	if out.RegistrarIANAID == "" {
		out.RegistrarIANAID = fb.RegistrarIANAID
	}
	if out.RegistrarAbuseEmail == "" {
		out.RegistrarAbuseEmail = fb.RegistrarAbuseEmail
	}
	if out.RegistrarAbusePhone == "" {
		out.RegistrarAbusePhone = fb.RegistrarAbusePhone
	}
	if out.DNSSEC == "" && fb.DNSSECSigned != nil {
		if *fb.DNSSECSigned {
			out.DNSSEC = "signed"
		} else {
			out.DNSSEC = "unsigned"
		}
	}
}

func deriveAge(out *WhoisResult) {
	if out.CreationDate == nil {
		return
	}
	age := int(time.Since(*out.CreationDate).Hours() / 24)
	out.AgeDays = &age
}

// scoreRegistration computes the checker-local additive risk score and
// classification. This is distinct from the final aggregate label.
func scoreRegistration(out *WhoisResult) {
	if out.AgeDays != nil {
		switch age := *out.AgeDays; {
		case age < 30:
			out.RiskScore += 40
			out.RiskFactors = append(out.RiskFactors, "Very new domain (< 30 days)")
		case age < 90:
			out.RiskScore += 25
			out.RiskFactors = append(out.RiskFactors, "Recently registered domain (< 90 days)")
		case age < 365:
			out.RiskScore += 10
			out.RiskFactors = append(out.RiskFactors, "Young domain (< 1 year)")
		}
	}

	if out.ExpirationDate != nil {
		if time.Until(*out.ExpirationDate).Hours()/24 < 30 {
			out.RiskScore += 20
			out.RiskFactors = append(out.RiskFactors, "Domain expiring within 30 days")
		}
	}

	out.PrivacyProtected = detectPrivacy(out.Registrant) || detectPrivacy(out.RegistrantOrganization)
	if out.PrivacyProtected {
		out.RiskScore += 15
		out.RiskFactors = append(out.RiskFactors, "WHOIS privacy protection enabled")
	}

	if out.Registrar == "" {
		out.RiskScore += 10
		out.RiskFactors = append(out.RiskFactors, "Registrar information not available")
	}
	if out.CreationDate == nil {
		out.RiskScore += 20
		out.RiskFactors = append(out.RiskFactors, "Domain creation date not available")
	}
	if out.DNSSEC == "unsigned" {
		out.RiskScore += 5
		out.RiskFactors = append(out.RiskFactors, "DNSSEC not enabled")
	}

	for _, status := range out.Statuses {
		lower := strings.ToLower(status)
		flagged := false
		for _, sus := range suspiciousStatuses {
			if strings.Contains(lower, sus) {
				flagged = true
				break
			}
		}
		if flagged {
			out.RiskScore += 30
			out.RiskFactors = append(out.RiskFactors, fmt.Sprintf("Suspicious domain status: %s", status))
		}
	}

	switch {
	case out.RiskScore >= consts.WhoisHighRiskThreshold:
		out.Classification = "High Risk"
	case out.RiskScore >= consts.WhoisSuspiciousThreshold:
		out.Classification = "Suspicious"
	default:
		out.Classification = "Low Risk"
	}
}

func detectPrivacy(value string) bool {
	if value == "" {
		return false
	}
	lower := strings.ToLower(value)
	for _, kw := range privacyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
