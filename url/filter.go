package url

import (
	"net/url"
	"strings"
)

// FilterQuery rewrites u's query string so that only parameters whose decoded
// key appears in the allowlist survive. Comparison is case-sensitive and
// exact. Surviving pairs keep their original relative order and are re-encoded
// with standard query escaping; url.Values is deliberately avoided because its
// Encode sorts keys. An empty result leaves the URL with no query component
// at all. The operation is idempotent.
func FilterQuery(u *url.URL, allow []string) {
	u.ForceQuery = false

	if u.RawQuery == "" {
		return
	}

	if len(allow) == 0 {
		u.RawQuery = ""
		return
	}

	allowed := make(map[string]struct{}, len(allow))
	for _, key := range allow {
		allowed[key] = struct{}{}
	}

	var kept []string
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}

		rawKey, rawValue, hasValue := strings.Cut(pair, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		if _, ok := allowed[key]; !ok {
			continue
		}

		if !hasValue {
			kept = append(kept, url.QueryEscape(key))
			continue
		}

		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			value = rawValue
		}
		kept = append(kept, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}

	u.RawQuery = strings.Join(kept, "&")
}
