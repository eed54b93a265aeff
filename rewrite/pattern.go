package rewrite

import (
	"fmt"
	"regexp"
)

// Span is a single pattern match against one specific snapshot of message
// text. The byte offsets are only valid for the snapshot they were computed
// from; spans produced by one Find call are non-overlapping and in increasing
// order.
type Span struct {
	Start  int
	End    int
	Text   string
	Groups map[string]string

	// submatch indexes into the scanned snapshot, for template expansion.
	idx []int
}

// Pattern is a compiled rule pattern with named capture groups and a host
// boundary constraint.
type Pattern struct {
	re *regexp.Regexp
}

// CompilePattern compiles a rule pattern. A malformed pattern is fatal at
// startup; patterns are never compiled at message time.
func CompilePattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid rule pattern %q: %w", expr, err)
	}
	return &Pattern{re: re}, nil
}

// Find scans text and returns every boundary-respecting match. Each call is a
// fresh pass over the snapshot it is given.
//
// Go's regexp has no lookbehind, so the boundary is enforced explicitly: a
// match whose start directly follows a hostname byte (letter, digit, '.' or
// '-') sits inside an already-qualified domain — a pattern for twitter.com
// must not fire inside vxtwitter.com or after "c." — and is skipped, with
// scanning resuming past its end.
func (p *Pattern) Find(text string) []Span {
	var spans []Span

	offset := 0
	for offset <= len(text) {
		idx := p.re.FindStringSubmatchIndex(text[offset:])
		if idx == nil {
			break
		}

		start, end := offset+idx[0], offset+idx[1]
		if end == start {
			// Zero-width match; step forward so the scan terminates.
			offset = start + 1
			continue
		}

		if start > 0 && isHostByte(text[start-1]) {
			offset = end
			continue
		}

		abs := make([]int, len(idx))
		for i, v := range idx {
			if v < 0 {
				abs[i] = -1
			} else {
				abs[i] = v + offset
			}
		}

		groups := make(map[string]string)
		for i, name := range p.re.SubexpNames() {
			if name == "" || abs[2*i] < 0 {
				continue
			}
			groups[name] = text[abs[2*i]:abs[2*i+1]]
		}

		spans = append(spans, Span{
			Start:  start,
			End:    end,
			Text:   text[start:end],
			Groups: groups,
			idx:    abs,
		})
		offset = end
	}

	return spans
}

// Expand substitutes ${group} references in template with the span's captures.
// The span must have been produced by this pattern against snapshot.
func (p *Pattern) Expand(template, snapshot string, span Span) string {
	return string(p.re.ExpandString(nil, template, snapshot, span.idx))
}

// isHostByte reports whether b can appear inside a hostname.
func isHostByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '.' || b == '-':
		return true
	}
	return false
}
