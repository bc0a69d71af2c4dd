package normalize

import (
	"net/url"
	"strings"
)

// ImageURLs filters and canonicalizes a scraped photo URL list:
//
//   - empty and whitespace-only entries are dropped;
//   - protocol-relative URLs ("//host/...") are upgraded to https;
//   - absolute URLs are validated and malformed ones dropped;
//   - root-relative URLs ("/path") pass through unresolved; no base URL
//     is threaded to this layer, so downstream consumers resolve them.
func ImageURLs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if strings.HasPrefix(u, "//") {
			out = append(out, "https:"+u)
			continue
		}
		if strings.HasPrefix(u, "/") {
			out = append(out, u)
			continue
		}
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			continue
		}
		out = append(out, u)
	}
	return out
}
