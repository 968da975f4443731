package bot

import (
	"net/url"
	"strings"
)

// supportedHosts is the fixed allow-list of link domains the bot fetches
// from. Subdomains count (vm.tiktok.com matches tiktok.com).
var supportedHosts = []string{
	"tiktok.com",
	"instagram.com",
	"instagr.am",
}

// matchSupportedLink extracts the first supported URL from free text.
// Matching is on the parsed host, not a substring scan, so unsupported hosts
// never match no matter how the text mentions them. A bare "tiktok.com"
// token does count: it parses to an allow-listed host and yields a link to
// the site root.
func matchSupportedLink(text string) (string, bool) {
	for _, f := range strings.Fields(text) {
		raw := f
		if !strings.Contains(raw, "://") {
			if !strings.Contains(raw, ".") {
				continue
			}
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		for _, h := range supportedHosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return raw, true
			}
		}
	}
	return "", false
}
