package rewrite

import (
	"context"
	"errors"
	"fmt"

	urlutil "github.com/linktrim/linktrim/url"
)

// Rewrite strategy kinds.
const (
	// KindStaticTemplate substitutes captured groups into a fixed template.
	KindStaticTemplate = "static-template"
	// KindFilterOnly re-parses the matched URL and strips query parameters
	// down to the rule's allowlist.
	KindFilterOnly = "filter-only"
	// KindResolveAndFilter expands the matched URL through the resolver, then
	// filters the destination's query parameters.
	KindResolveAndFilter = "resolve-and-filter"
)

// Resolver resolves a URL to its final destination after redirects. It is the
// only source of I/O in a rule application.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Rule binds a pattern to a rewrite strategy. Rules are immutable once
// constructed and shared read-only across concurrent pipeline invocations.
type Rule struct {
	Name    string
	Pattern *Pattern
	Kind    string

	// Template is the replacement for static-template rules, with ${group}
	// references into the pattern's named captures.
	Template string

	// Allow lists the query parameter names that survive filtering. An empty
	// list drops the query entirely.
	Allow []string
}

// Validate checks the rule descriptor for construction errors.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return errors.New("rule name is required")
	}
	if r.Pattern == nil {
		return fmt.Errorf("rule %s: pattern is required", r.Name)
	}

	switch r.Kind {
	case KindStaticTemplate:
		if r.Template == "" {
			return fmt.Errorf("rule %s: static-template rule needs a template", r.Name)
		}
	case KindFilterOnly, KindResolveAndFilter:
	default:
		return fmt.Errorf("rule %s: unknown rewrite kind %q", r.Name, r.Kind)
	}

	return nil
}

// apply computes the replacement text for one span of snapshot.
//
// Failure policy: a span that does not parse as a URL means the pattern
// over-matched; the span is returned unrewritten, which is deterministic and
// stable. A resolution failure is transient and propagates so the caller can
// leave the whole message untouched rather than half-rewritten.
func (r *Rule) apply(ctx context.Context, res Resolver, snapshot string, span Span) (string, error) {
	switch r.Kind {
	case KindStaticTemplate:
		return r.Pattern.Expand(r.Template, snapshot, span), nil

	case KindFilterOnly:
		u, hadScheme, err := urlutil.ParseLoose(span.Text)
		if err != nil {
			return span.Text, nil
		}
		urlutil.FilterQuery(u, r.Allow)
		return urlutil.FormatLoose(u, hadScheme), nil

	case KindResolveAndFilter:
		_, hadScheme, err := urlutil.ParseLoose(span.Text)
		if err != nil {
			return span.Text, nil
		}

		target := span.Text
		if !hadScheme {
			target = "https://" + target
		}

		finalURL, err := res.Resolve(ctx, target)
		if err != nil {
			return "", err
		}

		u, _, err := urlutil.ParseLoose(finalURL)
		if err != nil {
			return span.Text, nil
		}
		urlutil.FilterQuery(u, r.Allow)
		return u.String(), nil

	default:
		return "", fmt.Errorf("rule %s: unknown rewrite kind %q", r.Name, r.Kind)
	}
}
