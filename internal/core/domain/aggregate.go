package domain

import (
	"slices"
	"strings"
)

// AggregateKind identifies the membership predicate of a virtual aggregate.
type AggregateKind string

const (
	// AggregateSitemap lists every page on the site.
	AggregateSitemap AggregateKind = "sitemap"
	// AggregateMenu lists every page for navigation rendering.
	AggregateMenu AggregateKind = "menu"
	// AggregateTagIndex lists the pages carrying one tag (Term).
	AggregateTagIndex AggregateKind = "tag"
	// AggregateSection lists the pages under one directory prefix (Term).
	AggregateSection AggregateKind = "section"
)

// PageInfo is the view of a rendered page that membership predicates see.
type PageInfo struct {
	Source InternedString
	Tags   []string
}

// AggregateDescriptor describes a virtual aggregate: an output whose
// dependency set is a predicate over the page set rather than a fixed list.
// Members records the predicate's result at render time so the next cycle
// can detect membership changes, not just hash changes.
type AggregateDescriptor struct {
	Kind    AggregateKind    `json:"kind"`
	Term    string           `json:"term,omitempty"`
	Members []InternedString `json:"members"`
}

// Evaluate applies the membership predicate to the current page set and
// returns the matching sources sorted by identity. Re-evaluating the
// predicate each cycle is about as cheap as diffing its previous result and
// sidesteps stale-membership bugs entirely.
func (d *AggregateDescriptor) Evaluate(pages []PageInfo) []InternedString {
	var members []InternedString
	for _, p := range pages {
		if d.matches(p) {
			members = append(members, p.Source)
		}
	}
	slices.SortFunc(members, func(a, b InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
	return members
}

func (d *AggregateDescriptor) matches(p PageInfo) bool {
	switch d.Kind {
	case AggregateSitemap, AggregateMenu:
		return true
	case AggregateTagIndex:
		return slices.Contains(p.Tags, d.Term)
	case AggregateSection:
		return strings.HasPrefix(p.Source.String(), d.Term)
	default:
		return false
	}
}

// SameMembership reports whether the recorded members equal the given
// (already sorted) evaluation result.
func (d *AggregateDescriptor) SameMembership(current []InternedString) bool {
	return slices.Equal(d.Members, current)
}
