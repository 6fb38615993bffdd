package orchestrator

import (
	"sort"
	"strings"

	"github.com/lbliii/bengal/internal/core/domain"
)

// plannedOutput is one output the current source tree calls for, before any
// dirtiness decision.
type plannedOutput struct {
	id        domain.InternedString
	source    domain.InternedString
	aggregate *domain.AggregateDescriptor
}

// planOutputs derives the non-aggregate outputs from the discovered source
// set: one page per content file, one copied file per asset. Aggregates are
// planned later, from the rendered page set.
func (o *Orchestrator) planOutputs(sources map[domain.InternedString]domain.SourceArtifact) []plannedOutput {
	var plan []plannedOutput
	for id, src := range sources {
		switch src.Kind {
		case domain.SourceContent:
			plan = append(plan, plannedOutput{id: pageOutputID(o.cfg, id), source: id})
		case domain.SourceAsset:
			plan = append(plan, plannedOutput{id: assetOutputID(o.cfg, id), source: id})
		}
	}
	sort.Slice(plan, func(i, j int) bool {
		return plan[i].id.String() < plan[j].id.String()
	})
	return plan
}

// planAggregates derives the virtual aggregates from the current page set:
// one sitemap and one index per distinct tag. Membership is evaluated fresh
// every cycle; the previous members come from the cached descriptor.
func (o *Orchestrator) planAggregates(pages []domain.PageInfo) []plannedOutput {
	plan := []plannedOutput{{
		id:        domain.NewInternedString("sitemap.xml"),
		aggregate: &domain.AggregateDescriptor{Kind: domain.AggregateSitemap},
	}}

	tags := make(map[string]struct{})
	for _, p := range pages {
		for _, t := range p.Tags {
			tags[t] = struct{}{}
		}
	}
	for tag := range tags {
		plan = append(plan, plannedOutput{
			id:        domain.NewInternedString("tags/" + tag + "/index.html"),
			aggregate: &domain.AggregateDescriptor{Kind: domain.AggregateTagIndex, Term: tag},
		})
	}

	sort.Slice(plan, func(i, j int) bool {
		return plan[i].id.String() < plan[j].id.String()
	})
	return plan
}

// pageOutputID maps content/foo.md to foo/index.html (content/index.md to
// index.html) so pages get pretty URLs.
func pageOutputID(cfg *domain.Config, source domain.InternedString) domain.InternedString {
	rel := strings.TrimPrefix(source.String(), cfg.ContentDir+"/")
	rel = strings.TrimSuffix(rel, ".md")
	if rel == "index" {
		return domain.NewInternedString("index.html")
	}
	if base := strings.TrimSuffix(rel, "/index"); base != rel {
		rel = base
	}
	return domain.NewInternedString(rel + "/index.html")
}

// assetOutputID strips the assets root: assets/css/site.css to css/site.css.
func assetOutputID(cfg *domain.Config, source domain.InternedString) domain.InternedString {
	return domain.NewInternedString(strings.TrimPrefix(source.String(), cfg.AssetsDir+"/"))
}
