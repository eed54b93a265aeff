// Package rewrite canonicalizes platform URLs embedded in chat message text.
//
// The pipeline applies an ordered list of rules; each rule scans the text
// produced by the previous one, rewriting every match either with a static
// template, by stripping query parameters to an allowlist, or by resolving a
// short link and filtering its destination.
package rewrite

import (
	"context"
	"fmt"
	"strings"
)

// Pipeline applies a fixed, ordered rule catalog to message text. A Pipeline
// is immutable after construction and safe for concurrent use; each
// invocation owns all of its intermediate state.
type Pipeline struct {
	rules    []*Rule
	resolver Resolver
}

// NewPipeline creates a pipeline over the given rules. A nil rules slice
// selects the default catalog. The resolver is only consulted by
// resolve-and-filter rules; it may be nil when the catalog contains none.
func NewPipeline(res Resolver, rules []*Rule) (*Pipeline, error) {
	if rules == nil {
		rules = DefaultCatalog()
	}

	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if rule.Kind == KindResolveAndFilter && res == nil {
			return nil, fmt.Errorf("rule %s resolves short links but no resolver was provided", rule.Name)
		}
	}

	return &Pipeline{rules: rules, resolver: res}, nil
}

// ReplaceAll runs every rule in catalog order against text and returns the
// final result. The output equals the input when nothing matched; callers
// derive the "changed" fact by comparison. A resolution failure aborts the
// remaining rule chain and returns the error with the input left unrewritten.
func (p *Pipeline) ReplaceAll(ctx context.Context, text string) (string, error) {
	current := text
	for _, rule := range p.rules {
		next, err := p.applyRule(ctx, rule, current)
		if err != nil {
			return "", fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		current = next
	}
	return current, nil
}

// applyRule rewrites every match of one rule within a single snapshot of the
// text. All spans are computed against the immutable snapshot up front, and
// the output is assembled in one left-to-right pass that copies the unmatched
// stretches between them. The snapshot is never edited in place, so a
// replacement changing the text length cannot invalidate later spans.
// Per-match resolution runs sequentially, in span order.
func (p *Pipeline) applyRule(ctx context.Context, rule *Rule, snapshot string) (string, error) {
	spans := rule.Pattern.Find(snapshot)
	if len(spans) == 0 {
		return snapshot, nil
	}

	var out strings.Builder
	out.Grow(len(snapshot))

	last := 0
	for _, span := range spans {
		replacement, err := rule.apply(ctx, p.resolver, snapshot, span)
		if err != nil {
			return "", err
		}
		out.WriteString(snapshot[last:span.Start])
		out.WriteString(replacement)
		last = span.End
	}
	out.WriteString(snapshot[last:])

	return out.String(), nil
}
