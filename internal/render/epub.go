package render

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/bindery/internal/assemble"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/fragment"
)

func init() {
	Register(&epubRenderer{})
}

// epubRenderer produces the reflowable e-book package: an EPUB 3 container
// with an EPUB 2 NCX for older readers. The zip layout is fully
// deterministic (fixed member order and timestamps) so only the declared
// volatile dcterms:modified value differs between builds.
type epubRenderer struct{}

func (*epubRenderer) Format() Format { return FormatEPUB }

// epubEpoch is the fixed modification time stamped on every zip member.
var epubEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// epubMember is one file inside the container, in write order.
type epubMember struct {
	Name string
	Data []byte
}

func (r *epubRenderer) Render(ctx context.Context, doc *assemble.Document, opts Options) (*Artifact, error) {
	cfg := opts.EPUB

	css := defaultStylesheet
	if cfg.Stylesheet != "" {
		custom, err := os.ReadFile(cfg.Stylesheet)
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatEPUB), fmt.Errorf("stylesheet: %w", err))
		}
		css = string(custom)
	}

	var coverImage []byte
	var coverName, coverMedia string
	if cfg.Cover != "" {
		img, err := os.ReadFile(cfg.Cover)
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatEPUB), fmt.Errorf("cover: %w", err))
		}
		coverImage = img
		ext := strings.ToLower(filepath.Ext(cfg.Cover))
		coverName = "cover" + ext
		switch ext {
		case ".png":
			coverMedia = "image/png"
		case ".gif":
			coverMedia = "image/gif"
		default:
			coverMedia = "image/jpeg"
		}
	}

	sections := make([][]byte, len(doc.Sections))
	kinds := make([]fragment.Kind, len(doc.Sections))
	for i, s := range doc.Sections {
		sections[i] = s.Fragment.Content
		kinds[i] = s.Fragment.Kind
	}

	ids := newSlugger()
	_, preAnchors, err := allocateAnchors([]byte(doc.Preamble), ids)
	if err != nil {
		return nil, binderrors.RenderFailed(string(FormatEPUB), err)
	}
	preambleXHTML, err := convertBlock(xhtmlMarkdown, []byte(doc.Preamble), preAnchors)
	if err != nil {
		return nil, binderrors.RenderFailed(string(FormatEPUB), err)
	}

	var outline []OutlineEntry
	sectionDocs := make([][]byte, len(sections))
	for i, src := range sections {
		if err := ctx.Err(); err != nil {
			return nil, binderrors.RenderFailed(string(FormatEPUB), err)
		}
		headings, anchors, err := allocateAnchors(src, ids)
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatEPUB), err)
		}
		body, err := convertBlock(xhtmlMarkdown, src, anchors)
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatEPUB), err)
		}
		title := doc.Meta.Title
		if len(headings) > 0 {
			title = headings[0].Text
		}
		sectionDocs[i] = xhtmlDocument(title, doc.Meta.Language, string(kinds[i]), body)
		for j, h := range headings {
			outline = append(outline, OutlineEntry{Level: h.Level, Text: h.Text, Anchor: anchors[j], Section: i})
		}
	}

	// Identifier is stable per (book, target) so reader libraries treat new
	// versions as updates of the same publication.
	pubID := "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("bindery:epub:"+doc.Meta.Title+":"+doc.Meta.Target)).String()

	members := []epubMember{
		{Name: "mimetype", Data: []byte("application/epub+zip")},
		{Name: "META-INF/container.xml", Data: []byte(containerXML)},
	}
	if coverImage != nil {
		members = append(members,
			epubMember{Name: "OEBPS/" + coverName, Data: coverImage},
			epubMember{Name: "OEBPS/cover.xhtml", Data: coverXHTML(doc.Meta.Language, coverName)},
		)
	}
	members = append(members,
		epubMember{Name: "OEBPS/content.opf", Data: r.packageOPF(doc, opts, pubID, coverName, coverMedia, len(sections))},
		epubMember{Name: "OEBPS/nav.xhtml", Data: r.navDocument(doc, outline, cfg.TOCDepth)},
		epubMember{Name: "OEBPS/toc.ncx", Data: r.ncxDocument(doc, outline, cfg.TOCDepth, pubID)},
		epubMember{Name: "OEBPS/style.css", Data: []byte(css)},
		epubMember{Name: "OEBPS/titlepage.xhtml", Data: xhtmlDocument(doc.Meta.Title, doc.Meta.Language, "titlepage", preambleXHTML)},
	)
	for i, sd := range sectionDocs {
		members = append(members, epubMember{Name: "OEBPS/" + sectionFilename(i), Data: sd})
	}

	// ContentHash covers the canonical member stream, volatile stamp still
	// masked. The zip bytes are hashed after substitution.
	h := bytes.Buffer{}
	for _, m := range members {
		fmt.Fprintf(&h, "%s\n%d\n", m.Name, len(m.Data))
		h.Write(m.Data)
	}
	contentHash := hashBytes(h.Bytes())

	stamp := []byte(stampTime(opts.GeneratedAt))
	for i := range members {
		members[i].Data = bytes.ReplaceAll(members[i].Data, []byte(volatileStamp), stamp)
	}

	payload, err := writeContainer(members)
	if err != nil {
		return nil, binderrors.RenderFailed(string(FormatEPUB), err)
	}

	return &Artifact{
		Target:      doc.Meta.Target,
		Format:      FormatEPUB,
		Version:     opts.Version,
		Filename:    doc.Meta.Target + ".epub",
		Payload:     payload,
		Size:        int64(len(payload)),
		ContentHash: contentHash,
		PayloadHash: hashBytes(payload),
		GeneratedAt: opts.GeneratedAt,
	}, nil
}

func sectionFilename(i int) string {
	return fmt.Sprintf("section-%03d.xhtml", i+1)
}

// writeContainer packages members into the OCF zip: mimetype first and
// stored uncompressed, everything deflated, all timestamps fixed.
func writeContainer(members []epubMember) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, m := range members {
		hdr := &zip.FileHeader{Name: m.Name, Method: zip.Deflate, Modified: epubEpoch}
		if i == 0 {
			hdr.Method = zip.Store
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("container member %s: %w", m.Name, err)
		}
		if _, err := w.Write(m.Data); err != nil {
			return nil, fmt.Errorf("container member %s: %w", m.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize container: %w", err)
	}
	return buf.Bytes(), nil
}

const containerXML = `<?xml version="1.0" encoding="utf-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// xhtmlDocument wraps a converted body in the XHTML shell every content
// document shares.
func xhtmlDocument(title, lang, bodyClass string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<!DOCTYPE html>\n")
	fmt.Fprintf(&b, "<html xmlns=\"http://www.w3.org/1999/xhtml\" xmlns:epub=\"http://www.idpf.org/2007/ops\" lang=%q xml:lang=%q>\n", lang, lang)
	fmt.Fprintf(&b, "<head>\n<title>%s</title>\n<link rel=\"stylesheet\" type=\"text/css\" href=\"style.css\"/>\n</head>\n", htmlEscape(title))
	fmt.Fprintf(&b, "<body class=%q>\n", bodyClass)
	b.Write(body)
	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

func coverXHTML(lang, coverName string) []byte {
	body := []byte(fmt.Sprintf("<div class=\"cover\"><img src=%q alt=\"Cover\"/></div>\n", coverName))
	return xhtmlDocument("Cover", lang, "cover", body)
}

// packageOPF renders the EPUB package document. dcterms:modified carries
// the volatile stamp placeholder until substitution.
func (r *epubRenderer) packageOPF(doc *assemble.Document, opts Options, pubID, coverName, coverMedia string, sectionCount int) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<package xmlns=\"http://www.idpf.org/2007/opf\" version=\"3.0\" unique-identifier=\"pub-id\">\n")
	b.WriteString("<metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\">\n")
	fmt.Fprintf(&b, "<dc:identifier id=\"pub-id\">%s</dc:identifier>\n", pubID)
	fmt.Fprintf(&b, "<dc:title>%s</dc:title>\n", htmlEscape(doc.Meta.Title))
	if doc.Meta.Author != "" {
		fmt.Fprintf(&b, "<dc:creator>%s</dc:creator>\n", htmlEscape(doc.Meta.Author))
	}
	fmt.Fprintf(&b, "<dc:language>%s</dc:language>\n", doc.Meta.Language)
	if opts.Version != "" {
		fmt.Fprintf(&b, "<meta property=\"bindery:version\">%s</meta>\n", opts.Version)
	}
	fmt.Fprintf(&b, "<meta property=\"dcterms:modified\">%s</meta>\n", volatileStamp)
	if coverName != "" {
		b.WriteString("<meta name=\"cover\" content=\"cover-image\"/>\n")
	}
	b.WriteString("</metadata>\n<manifest>\n")
	b.WriteString("<item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	b.WriteString("<item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	b.WriteString("<item id=\"css\" href=\"style.css\" media-type=\"text/css\"/>\n")
	if coverName != "" {
		fmt.Fprintf(&b, "<item id=\"cover-image\" href=%q media-type=%q properties=\"cover-image\"/>\n", coverName, coverMedia)
		b.WriteString("<item id=\"cover\" href=\"cover.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	}
	b.WriteString("<item id=\"titlepage\" href=\"titlepage.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	for i := 0; i < sectionCount; i++ {
		fmt.Fprintf(&b, "<item id=\"section-%03d\" href=%q media-type=\"application/xhtml+xml\"/>\n", i+1, sectionFilename(i))
	}
	b.WriteString("</manifest>\n<spine toc=\"ncx\">\n")
	if coverName != "" {
		b.WriteString("<itemref idref=\"cover\"/>\n")
	}
	b.WriteString("<itemref idref=\"titlepage\"/>\n")
	for i := 0; i < sectionCount; i++ {
		fmt.Fprintf(&b, "<itemref idref=\"section-%03d\"/>\n", i+1)
	}
	b.WriteString("</spine>\n</package>\n")
	return b.Bytes()
}

// navDocument renders the EPUB 3 navigation document.
func (r *epubRenderer) navDocument(doc *assemble.Document, outline []OutlineEntry, depth int) []byte {
	var b bytes.Buffer
	b.WriteString("<nav epub:type=\"toc\" id=\"toc\">\n<h1>Contents</h1>\n")
	level := 0
	for _, e := range outline {
		if e.Section < 0 || e.Level > depth {
			continue
		}
		for level < e.Level {
			b.WriteString("<ol>\n")
			level++
		}
		for level > e.Level {
			b.WriteString("</ol>\n")
			level--
		}
		fmt.Fprintf(&b, "<li><a href=\"%s#%s\">%s</a></li>\n", sectionFilename(e.Section), e.Anchor, htmlEscape(e.Text))
	}
	for level > 0 {
		b.WriteString("</ol>\n")
		level--
	}
	b.WriteString("</nav>\n")
	return xhtmlDocument("Contents", doc.Meta.Language, "nav", b.Bytes())
}

// ncxDocument renders the EPUB 2 compatibility NCX with a flat navMap.
func (r *epubRenderer) ncxDocument(doc *assemble.Document, outline []OutlineEntry, depth int, pubID string) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<ncx xmlns=\"http://www.daisy.org/z3986/2005/ncx/\" version=\"2005-1\">\n<head>\n")
	fmt.Fprintf(&b, "<meta name=\"dtb:uid\" content=%q/>\n", pubID)
	fmt.Fprintf(&b, "<meta name=\"dtb:depth\" content=\"%d\"/>\n", depth)
	b.WriteString("<meta name=\"dtb:totalPageCount\" content=\"0\"/>\n<meta name=\"dtb:maxPageNumber\" content=\"0\"/>\n</head>\n")
	fmt.Fprintf(&b, "<docTitle><text>%s</text></docTitle>\n<navMap>\n", htmlEscape(doc.Meta.Title))
	order := 0
	for _, e := range outline {
		if e.Section < 0 || e.Level > depth {
			continue
		}
		order++
		fmt.Fprintf(&b, "<navPoint id=\"np-%d\" playOrder=\"%d\"><navLabel><text>%s</text></navLabel><content src=\"%s#%s\"/></navPoint>\n",
			order, order, htmlEscape(e.Text), sectionFilename(e.Section), e.Anchor)
	}
	b.WriteString("</navMap>\n</ncx>\n")
	return b.Bytes()
}
