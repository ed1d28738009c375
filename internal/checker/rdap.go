package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	rdapBootstrapURL = "https://data.iana.org/rdap/dns.json"
	rdapFallbackBase = "https://rdap.org"
)

// rdapDomain mirrors the subset of an RDAP domain response the registration
// checker consumes.
type rdapDomain struct {
	Handle      string   `json:"handle"`
	LDHName     string   `json:"ldhName"`
	Status      []string `json:"status"`
	Events      []rdapEvent
	Nameservers []rdapNameserver `json:"nameservers"`
	Entities    []rdapEntity     `json:"entities"`
	SecureDNS   struct {
		DelegationSigned *bool `json:"delegationSigned"`
	} `json:"secureDNS"`
}

type rdapEvent struct {
	EventAction string    `json:"eventAction"`
	EventDate   time.Time `json:"eventDate"`
}

type rdapNameserver struct {
	LDHName string `json:"ldhName"`
}

type rdapEntity struct {
	Handle    string          `json:"handle"`
	Roles     []string        `json:"roles"`
	PublicIDs []rdapPublicID  `json:"publicIds"`
	VCard     json.RawMessage `json:"vcardArray"`
	Entities  []rdapEntity    `json:"entities"`
}

type rdapPublicID struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// eventDate returns the date of the first event matching any of the given
// actions, or nil.
func (d *rdapDomain) eventDate(actions ...string) *time.Time {
	for _, ev := range d.Events {
		for _, action := range actions {
			if strings.EqualFold(ev.EventAction, action) && !ev.EventDate.IsZero() {
				date := ev.EventDate.UTC()
				return &date
			}
		}
	}
	return nil
}

// rdapClient resolves domains against the registry RDAP service. The IANA
// bootstrap registry (TLD -> service URL) is fetched lazily exactly once per
// process; concurrent first use triggers a single fetch.
type rdapClient struct {
	httpClient *http.Client

	// bootstrapURL and fallbackBase are overridable in tests.
	bootstrapURL string
	fallbackBase string

	bootstrapOnce sync.Once
	services      map[string]string
	bootstrapErr  error
}

func newRDAPClient(timeout time.Duration) *rdapClient {
	return &rdapClient{
		httpClient:   &http.Client{Timeout: timeout},
		bootstrapURL: rdapBootstrapURL,
		fallbackBase: rdapFallbackBase,
	}
}

// rdapBootstrapFile is the shape of the IANA dns.json registry.
type rdapBootstrapFile struct {
	Services [][]json.RawMessage `json:"services"`
}

func (c *rdapClient) bootstrap(ctx context.Context) error {
	c.bootstrapOnce.Do(func() {
		c.services = map[string]string{}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bootstrapURL, nil)
		if err != nil {
			c.bootstrapErr = err
			return
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.bootstrapErr = err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			c.bootstrapErr = fmt.Errorf("rdap bootstrap: unexpected status %d", resp.StatusCode)
			return
		}

		var file rdapBootstrapFile
		if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
			c.bootstrapErr = fmt.Errorf("rdap bootstrap: %w", err)
			return
		}

		for _, service := range file.Services {
			// Each service entry is [ [tlds...], [urls...] ]
			if len(service) < 2 {
				continue
			}
			var tlds, urls []string
			if err := json.Unmarshal(service[0], &tlds); err != nil {
				continue
			}
			if err := json.Unmarshal(service[1], &urls); err != nil || len(urls) == 0 {
				continue
			}
			for _, tld := range tlds {
				c.services[strings.ToLower(tld)] = strings.TrimSuffix(urls[0], "/")
			}
		}
	})
	return c.bootstrapErr
}

// serviceFor picks the registry service URL for a domain's TLD, falling back
// to the public rdap.org aggregator when the TLD is unknown or bootstrap
// failed.
func (c *rdapClient) serviceFor(domain string) string {
	labels := strings.Split(strings.ToLower(domain), ".")
	tld := labels[len(labels)-1]
	if base, ok := c.services[tld]; ok {
		return base
	}
	return c.fallbackBase
}

// Domain performs the RDAP domain query.
func (c *rdapClient) Domain(ctx context.Context, domain string) (*rdapDomain, error) {
	// Bootstrap failure is not fatal: the aggregator endpoint still works.
	_ = c.bootstrap(ctx)

	endpoint := fmt.Sprintf("%s/domain/%s", c.serviceFor(domain), domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rdap lookup %s: status %d", domain, resp.StatusCode)
	}

	var record rdapDomain
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("rdap decode %s: %w", domain, err)
	}
	return &record, nil
}

// vcardProperties decodes the jCard property list out of a vcardArray value
// (["vcard", [[name, params, type, value...], ...]]).
func vcardProperties(raw json.RawMessage) [][]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var outer []json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil || len(outer) < 2 {
		return nil
	}
	var props [][]json.RawMessage
	if err := json.Unmarshal(outer[1], &props); err != nil {
		return nil
	}
	return props
}

func vcardString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
