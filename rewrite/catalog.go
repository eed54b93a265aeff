package rewrite

import (
	"slices"
	"sync"
)

// queryTail consumes an optional query string hanging off a matched URL so
// that strategies see (and can drop) the whole thing.
const queryTail = `(?:\?\S*)?`

// amazonDomain matches the marketplace's regional storefront hosts.
const amazonDomain = `(?P<domain>amazon\.(?:com|co\.jp|co\.uk|de|fr|it|es|ca|cn))`

// defaultCatalog builds the rule table exactly once, on first use. Order is
// significant: shortener-resolving rules come first so that an expanded short
// link is itself eligible for the canonicalizing rules that follow.
var defaultCatalog = sync.OnceValue(func() []*Rule {
	return []*Rule{
		{
			Name:    "b23-short",
			Pattern: mustPattern(`(?:https?://)?b23\.tv/[0-9A-Za-z]+/?` + queryTail),
			Kind:    KindResolveAndFilter,
			Allow:   []string{"p", "t"},
		},
		{
			Name:    "redirect-short",
			Pattern: mustPattern(`(?:https?://)?(?:xhslink\.com|t\.cn)/[0-9A-Za-z]+/?` + queryTail),
			Kind:    KindResolveAndFilter,
		},
		{
			Name:    "bilibili-video",
			Pattern: mustPattern(`(?:https?://)?(?:www\.|m\.)?bilibili\.com/video/[0-9A-Za-z]+/?` + queryTail),
			Kind:    KindFilterOnly,
			Allow:   []string{"p", "t"},
		},
		{
			Name:     "bilibili-article",
			Pattern:  mustPattern(`(?:https?://)?(?:www\.|m\.)?bilibili\.com/read/mobile/(?P<cvid>[0-9]+)/?` + queryTail),
			Kind:     KindStaticTemplate,
			Template: `https://www.bilibili.com/read/cv${cvid}`,
		},
		{
			Name:     "amazon-product",
			Pattern:  mustPattern(`(?:https?://)?(?:www\.)?` + amazonDomain + `/(?:[^\s?]*/)?dp/(?P<asin>[0-9A-Z]{10})\S*`),
			Kind:     KindStaticTemplate,
			Template: `https://www.${domain}/dp/${asin}/`,
		},
		{
			Name:     "amazon-search",
			Pattern:  mustPattern(`(?:https?://)?(?:www\.)?` + amazonDomain + `/s\?k=(?P<keyword>[^&\s]+)\S*`),
			Kind:     KindStaticTemplate,
			Template: `https://www.${domain}/s?k=${keyword}`,
		},
		{
			Name:     "twitter-status",
			Pattern:  mustPattern(`(?:https?://)?(?:www\.|mobile\.)?(?:twitter|x)\.com/(?P<path>[0-9A-Za-z_]+/status/[0-9]+)\S*`),
			Kind:     KindStaticTemplate,
			Template: `https://fxtwitter.com/${path}`,
		},
		{
			Name:    "weixin-article",
			Pattern: mustPattern(`(?:https?://)?mp\.weixin\.qq\.com/s\?\S+`),
			Kind:    KindFilterOnly,
			Allow:   []string{"__biz", "mid", "idx", "sn"},
		},
		{
			Name:     "jd-product",
			Pattern:  mustPattern(`(?:https?://)?(?P<url>(?:www\.)?item\.jd\.com/[0-9]+\.html)` + queryTail),
			Kind:     KindStaticTemplate,
			Template: `https://${url}`,
		},
	}
})

// DefaultCatalog returns the built-in rule table. The table is constructed
// lazily on first call and is safe to share across goroutines; callers must
// not mutate it.
func DefaultCatalog() []*Rule {
	return defaultCatalog()
}

// BuildCatalog returns the default catalog minus the rules named in disable,
// followed by any extra rules. Extra rules run after the built-in ones.
func BuildCatalog(disable []string, extra []*Rule) []*Rule {
	var rules []*Rule
	for _, rule := range DefaultCatalog() {
		if slices.Contains(disable, rule.Name) {
			continue
		}
		rules = append(rules, rule)
	}
	return append(rules, extra...)
}

// mustPattern panics on a malformed built-in pattern. The catalog is fixed at
// compile time, so a failure here is a programming error caught at startup.
func mustPattern(expr string) *Pattern {
	p, err := CompilePattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}
