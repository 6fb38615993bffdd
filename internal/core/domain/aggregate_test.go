package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lbliii/bengal/internal/core/domain"
)

func pages() []domain.PageInfo {
	return []domain.PageInfo{
		{Source: id("content/docs/setup.md"), Tags: []string{"go", "docs"}},
		{Source: id("content/about.md"), Tags: []string{"meta"}},
		{Source: id("content/docs/api.md"), Tags: []string{"go"}},
	}
}

func TestEvaluateSitemapAndMenuMatchEverything(t *testing.T) {
	for _, kind := range []domain.AggregateKind{domain.AggregateSitemap, domain.AggregateMenu} {
		d := &domain.AggregateDescriptor{Kind: kind}
		got := d.Evaluate(pages())
		require.Equal(t,
			ids("content/about.md", "content/docs/api.md", "content/docs/setup.md"),
			got, "kind %s", kind)
	}
}

func TestEvaluateTagIndex(t *testing.T) {
	d := &domain.AggregateDescriptor{Kind: domain.AggregateTagIndex, Term: "go"}
	require.Equal(t,
		ids("content/docs/api.md", "content/docs/setup.md"),
		d.Evaluate(pages()))

	d.Term = "missing"
	require.Empty(t, d.Evaluate(pages()))
}

func TestEvaluateSection(t *testing.T) {
	d := &domain.AggregateDescriptor{Kind: domain.AggregateSection, Term: "content/docs/"}
	require.Equal(t,
		ids("content/docs/api.md", "content/docs/setup.md"),
		d.Evaluate(pages()))
}

func TestEvaluateUnknownKindMatchesNothing(t *testing.T) {
	d := &domain.AggregateDescriptor{Kind: domain.AggregateKind("bogus")}
	require.Empty(t, d.Evaluate(pages()))
}

func TestSameMembership(t *testing.T) {
	d := &domain.AggregateDescriptor{
		Kind:    domain.AggregateSitemap,
		Members: ids("content/a.md", "content/b.md"),
	}

	require.True(t, d.SameMembership(ids("content/a.md", "content/b.md")))
	require.False(t, d.SameMembership(ids("content/a.md")))
	require.False(t, d.SameMembership(ids("content/a.md", "content/c.md")))
	require.False(t, d.SameMembership(nil))
}

func TestChangeSetEmptyAndTouched(t *testing.T) {
	cs := &domain.ChangeSet{}
	require.True(t, cs.Empty())
	require.Empty(t, cs.Touched())

	cs = &domain.ChangeSet{ConfigChanged: true}
	require.False(t, cs.Empty())

	cs = &domain.ChangeSet{
		Added:    ids("content/new.md"),
		Modified: ids("templates/page.html"),
		Removed:  ids("content/old.md"),
	}
	require.False(t, cs.Empty())
	require.Equal(t,
		ids("content/new.md", "templates/page.html", "content/old.md"),
		cs.Touched())
}
