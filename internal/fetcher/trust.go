package fetcher

import (
	"fmt"
	"net/url"
	"strings"
)

type TrustTier int

const (
	TrustUnknown TrustTier = iota
	TrustAllowlisted
	TrustTrusted
)

func (t TrustTier) String() string {
	switch t {
	case TrustTrusted:
		return "trusted"
	case TrustAllowlisted:
		return "allowlisted"
	default:
		return "unknown"
	}
}

// TrustedDomains are known medicine retailers whose listings are imported
// without a manual-review annotation.
var TrustedDomains = []string{
	"1mg.com",
	"pharmeasy.in",
	"netmeds.com",
	"apollopharmacy.in",
	"medplusmart.com",
}

// TrustPolicy classifies source hosts. It never blocks a fetch.
type TrustPolicy struct {
	trusted   []string
	allowlist []string
}

func NewTrustPolicy(allowlist []string) *TrustPolicy {
	p := &TrustPolicy{trusted: TrustedDomains}
	for _, d := range allowlist {
		d = normalizeHost(d)
		if d != "" {
			p.allowlist = append(p.allowlist, d)
		}
	}
	return p
}

func (p *TrustPolicy) Classify(host string) TrustTier {
	host = normalizeHost(host)
	if host == "" {
		return TrustUnknown
	}
	if matchesDomain(host, p.trusted) {
		return TrustTrusted
	}
	if matchesDomain(host, p.allowlist) {
		return TrustAllowlisted
	}
	return TrustUnknown
}

func (p *TrustPolicy) ClassifyURL(rawURL string) (string, TrustTier) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", TrustUnknown
	}
	host := normalizeHost(u.Hostname())
	return host, p.Classify(host)
}

// Attribution is the provenance label stamped on imported records.
func Attribution(domain string, tier TrustTier) string {
	switch tier {
	case TrustTrusted:
		return fmt.Sprintf("Product information sourced from %s (trusted retailer)", domain)
	case TrustAllowlisted:
		return fmt.Sprintf("Product information sourced from %s (allowlisted source)", domain)
	default:
		return fmt.Sprintf("Product information sourced from %s (unverified source, pending review)", domain)
	}
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
