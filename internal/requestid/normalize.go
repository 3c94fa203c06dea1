package requestid

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// NormalizeOptions controls optional deviations from the default
// normalization rule.
type NormalizeOptions struct {
	// KeepFragment preserves the URL fragment instead of dropping it.
	KeepFragment bool
}

// NormalizeURL standardizes a URL so that two URLs referring to the same
// resource derive the same uniqueKey: the scheme and host are lower-cased,
// default ports and trailing slashes are stripped, query parameters are
// sorted and utm_* parameters removed, and the fragment is dropped unless
// KeepFragment is set. NormalizeURL is idempotent: normalizing its own
// output returns the same string.
func NormalizeURL(rawURL string, opts NormalizeOptions) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Path = strings.TrimRight(u.Path, "/")

	if !opts.KeepFragment {
		u.Fragment = ""
	}

	u.RawQuery = sortedFilteredQuery(u.Query())

	return u.String(), nil
}

func sortedFilteredQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if strings.HasPrefix(k, "utm_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for i, k := range keys {
		values := q[k]
		sort.Strings(values)
		for j, v := range values {
			if i > 0 || j > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(url.QueryEscape(k))
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(v))
		}
	}
	return buf.String()
}
