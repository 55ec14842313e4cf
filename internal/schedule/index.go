package schedule

import "sort"

// Index maps task slugs to their parsed rules. Tasks whose expression failed
// to parse have no entry.
type Index map[string]Rule

// BuildIndex parses every expression in exprs (slug -> expression). Failures
// are returned per slug and never abort the build.
func BuildIndex(p *Parser, exprs map[string]string) (Index, map[string]error) {
	idx := make(Index, len(exprs))
	var failures map[string]error
	for slug, expr := range exprs {
		rule, err := p.Parse(expr)
		if err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[slug] = err
			continue
		}
		idx[slug] = rule
	}
	return idx, failures
}

// Lookup returns the rule for slug.
func (idx Index) Lookup(slug string) (Rule, bool) {
	rule, ok := idx[slug]
	return rule, ok
}

// Slugs returns indexed slugs in sorted order.
func (idx Index) Slugs() []string {
	out := make([]string, 0, len(idx))
	for slug := range idx {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
