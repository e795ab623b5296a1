package render

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"git.home.luguber.info/inful/bindery/internal/assemble"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/fragment"
)

func init() {
	Register(&htmlRenderer{})
}

// htmlRenderer produces the single-file web document: one self-contained
// page with an inline stylesheet and an expanded TOC nav.
type htmlRenderer struct{}

func (*htmlRenderer) Format() Format { return FormatHTML }

func (r *htmlRenderer) Render(ctx context.Context, doc *assemble.Document, opts Options) (*Artifact, error) {
	cfg := opts.HTML

	css := defaultStylesheet
	if cfg.Stylesheet != "" {
		custom, err := os.ReadFile(cfg.Stylesheet)
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatHTML), fmt.Errorf("stylesheet: %w", err))
		}
		css = string(custom)
	}

	sections := make([][]byte, len(doc.Sections))
	kinds := make([]fragment.Kind, len(doc.Sections))
	for i, s := range doc.Sections {
		sections[i] = s.Fragment.Content
		kinds[i] = s.Fragment.Kind
	}
	if cfg.Numbering {
		numbered, err := applyNumbering(sections, kinds, cfg.TOCDepth)
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatHTML), err)
		}
		sections = numbered
	}

	// One anchor space for the whole page; the preamble heading claims its
	// slug before any section does.
	ids := newSlugger()
	_, preAnchors, err := allocateAnchors([]byte(doc.Preamble), ids)
	if err != nil {
		return nil, binderrors.RenderFailed(string(FormatHTML), err)
	}
	preambleHTML, err := convertBlock(htmlMarkdown, []byte(doc.Preamble), preAnchors)
	if err != nil {
		return nil, binderrors.RenderFailed(string(FormatHTML), err)
	}

	var outline []OutlineEntry
	var body bytes.Buffer
	for i, src := range sections {
		if err := ctx.Err(); err != nil {
			return nil, binderrors.RenderFailed(string(FormatHTML), err)
		}
		headings, anchors, err := allocateAnchors(src, ids)
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatHTML), err)
		}
		sectionHTML, err := convertBlock(htmlMarkdown, src, anchors)
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatHTML), err)
		}
		for j, h := range headings {
			outline = append(outline, OutlineEntry{Level: h.Level, Text: h.Text, Anchor: anchors[j], Section: i})
		}
		fmt.Fprintf(&body, "<section class=%q>\n", string(kinds[i]))
		body.Write(sectionHTML)
		body.WriteString("</section>\n")
	}

	nav := tocHTML(outline, cfg.TOCDepth, func(e OutlineEntry) string { return "#" + e.Anchor })

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html lang=%q>\n<head>\n", doc.Meta.Language)
	page.WriteString("<meta charset=\"utf-8\">\n")
	page.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	page.WriteString("<meta name=\"generator\" content=\"bindery\">\n")
	fmt.Fprintf(&page, "<meta name=\"bindery-generated\" content=%q>\n", volatileStamp)
	fmt.Fprintf(&page, "<title>%s</title>\n", htmlEscape(doc.Meta.Title))
	fmt.Fprintf(&page, "<style>\n%s</style>\n</head>\n<body>\n", css)
	page.WriteString("<header class=\"preamble\">\n")
	page.Write(preambleHTML)
	page.WriteString("</header>\n")
	page.WriteString(assemble.TOCMarker)
	page.WriteString("\n<main>\n")
	page.Write(body.Bytes())
	page.WriteString("</main>\n</body>\n</html>\n")

	canonical := bytes.Replace(page.Bytes(), []byte(assemble.TOCMarker), []byte(nav), 1)
	payload := bytes.ReplaceAll(canonical, []byte(volatileStamp), []byte(stampTime(opts.GeneratedAt)))

	return &Artifact{
		Target:      doc.Meta.Target,
		Format:      FormatHTML,
		Version:     opts.Version,
		Filename:    doc.Meta.Target + ".html",
		Payload:     payload,
		Size:        int64(len(payload)),
		ContentHash: hashBytes(canonical),
		PayloadHash: hashBytes(payload),
		GeneratedAt: opts.GeneratedAt,
	}, nil
}

// defaultStylesheet is the inline stylesheet used when no custom one is
// configured. Kept small; serious typography belongs in a project
// stylesheet.
const defaultStylesheet = `body {
  max-width: 44rem;
  margin: 0 auto;
  padding: 2rem 1rem;
  font-family: Georgia, "Times New Roman", serif;
  line-height: 1.6;
  color: #222;
}
header.preamble { text-align: center; margin-bottom: 3rem; }
nav.toc { border: 1px solid #ddd; padding: 1rem 2rem; margin-bottom: 3rem; }
nav.toc h2 { margin-top: 0; }
nav.toc ul { list-style: none; padding-left: 1rem; }
nav.toc a { text-decoration: none; }
section { margin-bottom: 2.5rem; }
section.chapter > h1 { page-break-before: always; }
h1, h2, h3 { font-family: Helvetica, Arial, sans-serif; line-height: 1.25; }
pre { background: #f6f6f6; padding: 0.75rem; overflow-x: auto; }
code { font-family: "SF Mono", Consolas, monospace; font-size: 0.92em; }
blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #555; }
img { max-width: 100%; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.6rem; }
`
