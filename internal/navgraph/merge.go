package navgraph

import "github.com/xkilldash9x/wayfinder/api/schemas"

// Merge folds next into prev and returns the result. Pages are matched by
// name. For a page present in both, the scalar fields and visited steps take
// the value from next unless it is empty, and element and link lists become
// the ordered union of both. Neither input is modified.
func Merge(prev, next schemas.NavigationGraph) schemas.NavigationGraph {
	out := make(schemas.NavigationGraph, len(prev)+len(next))
	for name, page := range prev {
		out[name] = clonePage(page)
	}
	for name, page := range next {
		old, ok := out[name]
		if !ok {
			out[name] = clonePage(page)
			continue
		}
		out[name] = mergePage(old, page)
	}
	return out
}

func mergePage(old, next schemas.NavigationPage) schemas.NavigationPage {
	merged := old
	if next.URL != "" {
		merged.URL = next.URL
	}
	if next.Layout != "" {
		merged.Layout = next.Layout
	}
	if len(next.VisitedSteps) > 0 {
		merged.VisitedSteps = append([]int(nil), next.VisitedSteps...)
	}
	merged.Elements = unionStrings(old.Elements, next.Elements)
	merged.OutgoingLinks = unionLinks(old.OutgoingLinks, next.OutgoingLinks)
	return merged
}

func clonePage(p schemas.NavigationPage) schemas.NavigationPage {
	p.Elements = unionStrings(nil, p.Elements)
	p.OutgoingLinks = unionLinks(nil, p.OutgoingLinks)
	if p.VisitedSteps != nil {
		p.VisitedSteps = append([]int(nil), p.VisitedSteps...)
	}
	return p
}

func unionStrings(a, b []string) []string {
	if a == nil && b == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func unionLinks(a, b []schemas.OutgoingLink) []schemas.OutgoingLink {
	if a == nil && b == nil {
		return nil
	}
	seen := make(map[schemas.OutgoingLink]struct{}, len(a)+len(b))
	out := make([]schemas.OutgoingLink, 0, len(a)+len(b))
	for _, list := range [][]schemas.OutgoingLink{a, b} {
		for _, l := range list {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
