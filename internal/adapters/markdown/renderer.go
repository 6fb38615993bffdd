// Package markdown implements the reference renderer: goldmark for content,
// html/template for the page shell. The engine treats it like any external
// renderer; it only sees the Renderer port.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.Renderer = (*Renderer)(nil)

// PageTemplateID is the template consulted for every content page.
const PageTemplateID = "templates/page.html"

// NavPartialID is the shared navigation partial. Its rendered form is the
// same for every page in a cycle, so it goes through the fragment cache.
const NavPartialID = "templates/partials/nav.html"

// Renderer converts markdown sources and aggregate member lists into HTML.
// It reports every source it consulted; the engine trusts that report.
type Renderer struct {
	cfg *domain.Config
	md  goldmark.Markdown
}

// New creates a Renderer for the given site configuration.
func New(cfg *domain.Config) *Renderer {
	return &Renderer{
		cfg: cfg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// Render produces the output for one request.
func (r *Renderer) Render(ctx context.Context, req ports.RenderRequest) (ports.RenderResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RenderResult{}, err
	}

	if req.Aggregate != nil {
		return r.renderAggregate(req)
	}

	switch req.Source.Kind {
	case domain.SourceAsset:
		return r.renderAsset(req)
	case domain.SourceContent:
		return r.renderPage(req)
	default:
		return ports.RenderResult{}, zerr.With(zerr.With(zerr.Wrap(domain.ErrRender, "unsupported source kind"),
			"kind", string(req.Source.Kind)), "source", req.Source.ID.String())
	}
}

// frontMatter is the YAML header of a content page.
type frontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

func (r *Renderer) renderAsset(req ports.RenderRequest) (ports.RenderResult, error) {
	body, err := os.ReadFile(req.Source.Path) //nolint:gosec // Path comes from discovery
	if err != nil {
		return ports.RenderResult{}, zerr.With(zerr.Wrap(domain.ErrRender, err.Error()),
			"source", req.Source.ID.String())
	}
	return ports.RenderResult{
		Body: body,
		Deps: []domain.Dependency{{On: req.Source.ID, Hash: req.Source.Hash}},
	}, nil
}

func (r *Renderer) renderPage(req ports.RenderRequest) (ports.RenderResult, error) {
	raw, err := os.ReadFile(req.Source.Path) //nolint:gosec // Path comes from discovery
	if err != nil {
		return ports.RenderResult{}, zerr.With(zerr.Wrap(domain.ErrRender, err.Error()),
			"source", req.Source.ID.String())
	}

	fm, content, err := splitFrontMatter(raw)
	if err != nil {
		return ports.RenderResult{}, zerr.With(zerr.Wrap(domain.ErrRender, err.Error()),
			"source", req.Source.ID.String())
	}

	var buf bytes.Buffer
	if err := r.md.Convert(content, &buf); err != nil {
		return ports.RenderResult{}, zerr.With(zerr.Wrap(domain.ErrRender, err.Error()),
			"source", req.Source.ID.String())
	}

	deps := []domain.Dependency{{On: req.Source.ID, Hash: req.Source.Hash}}

	nav, navDep, err := r.navFragment(req)
	if err != nil {
		return ports.RenderResult{}, err
	}
	if navDep != nil {
		deps = append(deps, *navDep)
	}

	shell, shellDep, err := r.pageTemplate(req)
	if err != nil {
		return ports.RenderResult{}, err
	}
	if shellDep != nil {
		deps = append(deps, *shellDep)
	}

	title := fm.Title
	if title == "" {
		title = req.Source.ID.String()
	}

	var out bytes.Buffer
	err = shell.Execute(&out, map[string]any{
		"Title":     title,
		"SiteTitle": r.cfg.Title,
		"BaseURL":   r.cfg.BaseURL,
		"Nav":       template.HTML(nav), //nolint:gosec // Nav is rendered from trusted templates
		"Content":   template.HTML(buf.String()),
	})
	if err != nil {
		return ports.RenderResult{}, zerr.With(zerr.Wrap(domain.ErrRender, err.Error()),
			"source", req.Source.ID.String())
	}

	return ports.RenderResult{Body: out.Bytes(), Deps: deps, Tags: fm.Tags}, nil
}

// navFragment renders the shared navigation partial, once per cycle via the
// fragment cache. The partial's content hash is the cache key, so an edited
// partial misses and re-renders.
func (r *Renderer) navFragment(req ports.RenderRequest) (string, *domain.Dependency, error) {
	partial, ok := req.Sources[domain.NewInternedString(NavPartialID)]
	if !ok {
		return "", nil, nil
	}

	body, err := req.Fragments.GetOrCompute(partial.Hash, func() ([]byte, error) {
		return os.ReadFile(partial.Path)
	})
	if err != nil {
		return "", nil, zerr.With(zerr.Wrap(domain.ErrRender, err.Error()), "partial", NavPartialID)
	}

	return string(body), &domain.Dependency{On: partial.ID, Hash: partial.Hash}, nil
}

// pageTemplate loads the page shell, falling back to a built-in one when the
// site does not provide templates/page.html.
func (r *Renderer) pageTemplate(req ports.RenderRequest) (*template.Template, *domain.Dependency, error) {
	src, ok := req.Sources[domain.NewInternedString(PageTemplateID)]
	if !ok {
		return defaultShell, nil, nil
	}

	raw, err := os.ReadFile(src.Path) //nolint:gosec // Path comes from discovery
	if err != nil {
		return nil, nil, zerr.With(zerr.Wrap(domain.ErrRender, err.Error()), "template", PageTemplateID)
	}
	tmpl, err := template.New(PageTemplateID).Parse(string(raw))
	if err != nil {
		return nil, nil, zerr.With(zerr.Wrap(domain.ErrRender, err.Error()), "template", PageTemplateID)
	}

	return tmpl, &domain.Dependency{On: src.ID, Hash: src.Hash}, nil
}

var defaultShell = template.Must(template.New("default").Parse(
	`<!doctype html>
<html><head><title>{{.Title}} - {{.SiteTitle}}</title></head>
<body>{{.Nav}}<main>{{.Content}}</main></body></html>
`))

func splitFrontMatter(raw []byte) (frontMatter, []byte, error) {
	var fm frontMatter
	if !bytes.HasPrefix(raw, []byte("---\n")) {
		return fm, raw, nil
	}
	rest := raw[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		return fm, raw, nil
	}
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return fm, nil, zerr.Wrap(err, "invalid front matter")
	}
	return fm, rest[end+5:], nil
}

func (r *Renderer) renderAggregate(req ports.RenderRequest) (ports.RenderResult, error) {
	var deps []domain.Dependency
	for _, member := range req.Aggregate.Members {
		if src, ok := req.Sources[member]; ok {
			deps = append(deps, domain.Dependency{On: member, Hash: src.Hash})
		}
	}

	var body bytes.Buffer
	switch req.Aggregate.Kind {
	case domain.AggregateSitemap:
		body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
		body.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
		for _, member := range req.Aggregate.Members {
			fmt.Fprintf(&body, "  <url><loc>%s/%s</loc></url>\n",
				strings.TrimSuffix(r.cfg.BaseURL, "/"), pageURL(member))
		}
		body.WriteString("</urlset>\n")

	case domain.AggregateTagIndex, domain.AggregateSection, domain.AggregateMenu:
		fmt.Fprintf(&body, "<!doctype html>\n<html><head><title>%s</title></head><body><ul>\n",
			template.HTMLEscapeString(req.Aggregate.Term))
		for _, member := range req.Aggregate.Members {
			fmt.Fprintf(&body, `  <li><a href="/%s">%s</a></li>`+"\n",
				pageURL(member), template.HTMLEscapeString(member.String()))
		}
		body.WriteString("</ul></body></html>\n")

	default:
		return ports.RenderResult{}, zerr.With(zerr.Wrap(domain.ErrRender, "unknown aggregate kind"),
			"kind", string(req.Aggregate.Kind))
	}

	return ports.RenderResult{Body: body.Bytes(), Deps: deps}, nil
}

// pageURL maps a content source identity to its pretty URL.
func pageURL(source domain.InternedString) string {
	p := source.String()
	p = strings.TrimPrefix(p, "content/")
	p = strings.TrimSuffix(p, ".md")
	if p == "index" {
		return ""
	}
	return p + "/"
}
