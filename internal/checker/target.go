package checker

import (
	"net"
	"net/url"
	"strings"
)

// TargetInfo contains parsed target information
type TargetInfo struct {
	Original string // Original target string
	Scheme   string // http, https, or empty
	Host     string // Hostname (without protocol, path, port)
	Port     string // Port if specified
	Path     string // Path if specified
	Query    string // Raw query string if specified
	FullURL  string // Full normalized URL (for HTTP requests)
}

// ParseTarget parses a target string into structured components.
// This handles various input formats:
//   - example.com
//   - https://example.com
//   - http://example.com:8080/login?next=/
//   - 192.0.2.10
//
// ParseTarget never fails: when nothing sensible can be extracted the raw
// input is used as the hostname.
func ParseTarget(target string) *TargetInfo {
	info := &TargetInfo{
		Original: target,
	}

	raw := strings.TrimSpace(target)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err == nil && parsed.Hostname() != "" {
		info.Scheme = parsed.Scheme
		info.Host = parsed.Hostname()
		info.Port = parsed.Port()
		info.Path = parsed.Path
		info.Query = parsed.RawQuery
		info.FullURL = parsed.String()
		return info
	}

	// Fallback: extract host manually from the raw input
	host := strings.TrimSpace(target)
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	host = strings.Split(host, "/")[0]
	parts := strings.SplitN(host, ":", 2)
	info.Host = parts[0]
	if len(parts) > 1 {
		info.Port = parts[1]
	}
	info.Scheme = "https"
	info.FullURL = "https://" + host
	return info
}

// NormalizeHostname validates and canonicalizes a bare hostname for socket
// and certificate purposes. It strips a trailing port, lowercases the name
// and rejects structurally invalid hostnames. IP literals pass through
// unmodified. Returns "" when the input cannot be a hostname.
func NormalizeHostname(hostname string) string {
	h := strings.TrimSpace(hostname)
	if h == "" {
		return ""
	}

	if strings.Contains(h, "://") {
		h = ParseTarget(h).Host
	}

	// Strip port suffix, but leave IPv6 literals alone
	if !strings.Contains(h, "]") && strings.Count(h, ":") == 1 {
		h = strings.SplitN(h, ":", 2)[0]
	}
	h = strings.Trim(h, "[]")

	if h == "" || len(h) > 253 {
		return ""
	}

	if ip := net.ParseIP(h); ip != nil {
		return h
	}

	if strings.HasPrefix(h, ".") || strings.HasSuffix(h, ".") || strings.Contains(h, "..") {
		return ""
	}

	return strings.ToLower(h)
}

// ExtractHost extracts just the hostname from a target. Useful for WHOIS
// and certificate checks where we need the bare hostname.
func ExtractHost(target string) string {
	return ParseTarget(target).Host
}

// multiLabelSuffixes lists common two-label public suffixes so that
// RegistrableDomain does not truncate e.g. example.co.uk to co.uk.
var multiLabelSuffixes = map[string]struct{}{
	"co.uk": {}, "org.uk": {}, "ac.uk": {}, "gov.uk": {},
	"com.au": {}, "net.au": {}, "org.au": {},
	"co.jp": {}, "or.jp": {}, "ne.jp": {},
	"co.nz": {}, "com.br": {}, "com.cn": {}, "com.tw": {},
	"co.in": {}, "co.za": {}, "com.mx": {}, "com.sg": {},
}

// RegistrableDomain reduces a hostname to its registrable domain
// (e.g. www.example.co.uk -> example.co.uk). IP literals and single-label
// hosts are returned unchanged.
func RegistrableDomain(hostname string) string {
	h := strings.ToLower(strings.TrimSuffix(hostname, "."))
	if net.ParseIP(h) != nil {
		return h
	}

	labels := strings.Split(h, ".")
	if len(labels) <= 2 {
		return h
	}

	suffix := strings.Join(labels[len(labels)-2:], ".")
	if _, ok := multiLabelSuffixes[suffix]; ok && len(labels) >= 3 {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return suffix
}
