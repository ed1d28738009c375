package checker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	consts "github.com/khanhnv2901/urlrisk/internal/shared/constants"
)

// SecurityHeaderFlags are the essential response-header presence checks.
// XContentTypeOptions additionally requires the "nosniff" value.
type SecurityHeaderFlags struct {
	StrictTransportSecurity bool `json:"strict_transport_security"`
	ContentSecurityPolicy   bool `json:"content_security_policy"`
	XContentTypeOptions     bool `json:"x_content_type_options"`
	XFrameOptions           bool `json:"x_frame_options"`
	ReferrerPolicy          bool `json:"referrer_policy"`
}

// HeadersResult reports the response-header posture of the final URL after
// following redirects.
type HeadersResult struct {
	FinalURL        string              `json:"final_url"`
	Status          int                 `json:"status"`
	Redirects       int                 `json:"redirects"`
	RedirectChain   []string            `json:"redirect_chain"`
	HTTPSRedirect   *bool               `json:"https_redirect"`
	SecurityHeaders SecurityHeaderFlags `json:"security_headers"`
	HeaderValues    map[string]string   `json:"header_values"`
	Errors          []string            `json:"errors"`
}

// observedHeaders are reported with their values for transparency, beyond
// the boolean posture flags.
var observedHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"Content-Security-Policy-Report-Only",
	"X-Content-Type-Options",
	"X-Frame-Options",
	"Referrer-Policy",
	"Permissions-Policy",
	"Cross-Origin-Resource-Policy",
	"Cross-Origin-Opener-Policy",
	"Cross-Origin-Embedder-Policy",
	"Access-Control-Allow-Origin",
	"X-XSS-Protection",
	"Cache-Control",
	"Server",
	"Alt-Svc",
}

// HeadersChecker fetches a URL following redirects and inspects the final
// response headers.
type HeadersChecker struct {
	Timeout time.Duration
	Client  *http.Client
}

func NewHeadersChecker(timeout time.Duration) *HeadersChecker {
	if timeout == 0 {
		timeout = consts.DefaultCheckTimeout
	}
	return &HeadersChecker{Timeout: timeout}
}

func (c *HeadersChecker) Name() string { return "check headers" }

func (c *HeadersChecker) Check(ctx context.Context, target string) HeadersResult {
	out := HeadersResult{
		RedirectChain: []string{},
		HeaderValues:  map[string]string{},
		Errors:        []string{},
	}

	testURL := target
	if !strings.Contains(testURL, "://") {
		testURL = "https://" + testURL
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}

	var chain []string
	wrapped := *client
	wrapped.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after 10 redirects")
		}
		chain = append(chain, via[len(via)-1].URL.String())
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, testURL, nil)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("headers_error: %v", err))
		return out
	}

	resp, err := wrapped.Do(req)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("headers_error: %v", err))
		return out
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	out.FinalURL = finalURL
	out.Status = resp.StatusCode
	out.Redirects = len(chain)
	out.RedirectChain = append(chain, finalURL)

	if len(chain) > 0 {
		httpsRedirect := strings.HasPrefix(chain[0], "http://") && strings.HasPrefix(finalURL, "https://")
		out.HTTPSRedirect = &httpsRedirect
	}

	h := resp.Header
	out.SecurityHeaders = SecurityHeaderFlags{
		StrictTransportSecurity: h.Get("Strict-Transport-Security") != "",
		ContentSecurityPolicy:   h.Get("Content-Security-Policy") != "",
		XContentTypeOptions:     strings.EqualFold(h.Get("X-Content-Type-Options"), "nosniff"),
		XFrameOptions:           h.Get("X-Frame-Options") != "",
		ReferrerPolicy:          h.Get("Referrer-Policy") != "",
	}

	for _, name := range observedHeaders {
		if v := h.Get(name); v != "" {
			out.HeaderValues[strings.ToLower(name)] = v
		}
	}

	return out
}
