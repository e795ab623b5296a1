package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"git.home.luguber.info/inful/bindery/internal/markdown"
)

// OutlineEntry is one content heading in the assembled document: what the
// table of contents links to.
type OutlineEntry struct {
	Level  int
	Text   string
	Anchor string
	// Section is the index of the owning section, -1 for preamble
	// headings (which never appear in the TOC).
	Section int
}

// htmlMarkdown renders fragment markdown to HTML. Unsafe raw HTML is
// enabled so authored inline HTML and the TOC marker comment pass through.
var htmlMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// xhtmlMarkdown is the EPUB variant; package documents must be XHTML.
var xhtmlMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe(), gmhtml.WithXHTML()),
)

// replayIDs feeds goldmark's auto-heading-ID hook with anchors allocated
// ahead of conversion, so the outline and the rendered HTML agree by
// construction. Goldmark requests IDs in document order, the same order
// markdown.ExtractHeadings walks.
type replayIDs struct {
	queue []string
}

func (r *replayIDs) Generate(value []byte, _ gmast.NodeKind) []byte {
	if len(r.queue) == 0 {
		// A heading goldmark sees that extraction did not; should not
		// happen, but an empty ID beats a panic mid-render.
		return nil
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	return []byte(next)
}

func (r *replayIDs) Put(_ []byte) {}

// convertBlock renders one markdown blob with pre-allocated heading
// anchors. anchors must hold exactly one entry per heading in src.
func convertBlock(md goldmark.Markdown, src []byte, anchors []string) ([]byte, error) {
	var buf bytes.Buffer
	pctx := parser.NewContext(parser.WithIDs(&replayIDs{queue: anchors}))
	if err := md.Convert(src, &buf, parser.WithContext(pctx)); err != nil {
		return nil, fmt.Errorf("markdown conversion: %w", err)
	}
	return buf.Bytes(), nil
}

// allocateAnchors extracts the headings of one blob and assigns each a
// unique anchor from the document-wide slugger.
func allocateAnchors(src []byte, ids *slugger) ([]markdown.Heading, []string, error) {
	headings, err := markdown.ExtractHeadings(src, markdown.Options{})
	if err != nil {
		return nil, nil, err
	}
	anchors := make([]string, len(headings))
	for i, h := range headings {
		anchors[i] = ids.anchor(h.Text)
	}
	return headings, anchors, nil
}

// tocHTML renders the outline as a nested list, capped at depth. Levels
// open and close <ul> elements as the outline walks deeper or shallower.
func tocHTML(outline []OutlineEntry, depth int, hrefFor func(OutlineEntry) string) string {
	var b bytes.Buffer
	b.WriteString("<nav class=\"toc\" id=\"toc\">\n<h2>Contents</h2>\n")

	level := 0
	for _, e := range outline {
		if e.Section < 0 || e.Level > depth {
			continue
		}
		for level < e.Level {
			b.WriteString("<ul>\n")
			level++
		}
		for level > e.Level {
			b.WriteString("</ul>\n")
			level--
		}
		fmt.Fprintf(&b, "<li><a href=%q>%s</a></li>\n", hrefFor(e), htmlEscape(e.Text))
	}
	for level > 0 {
		b.WriteString("</ul>\n")
		level--
	}
	b.WriteString("</nav>")
	return b.String()
}

func htmlEscape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
