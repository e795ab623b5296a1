package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/bindery/internal/assemble"
	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
)

func init() {
	Register(&pdfRenderer{})
}

// pdfRenderer produces the print-ready document by staging a canonical
// converter input and invoking the configured external converter binary
// (pandoc-compatible invocation: input, -o output, flags). The converter
// is a capability this renderer invokes, never something it implements.
//
// ContentHash digests the staged input plus the converter invocation: for a
// deterministic converter that fully determines the output, which keeps
// hashes comparable across builds without depending on converter-internal
// volatility (embedded creation dates and the like).
type pdfRenderer struct{}

func (*pdfRenderer) Format() Format { return FormatPDF }

func (r *pdfRenderer) Render(ctx context.Context, doc *assemble.Document, opts Options) (*Artifact, error) {
	cfg := opts.PDF

	converter, err := exec.LookPath(cfg.Converter)
	if err != nil {
		return nil, binderrors.RenderFailed(string(FormatPDF),
			fmt.Errorf("converter %q not found on PATH: %w", cfg.Converter, err))
	}

	staging := opts.StagingDir
	if staging == "" {
		tmp, err := os.MkdirTemp("", "bindery-pdf-")
		if err != nil {
			return nil, binderrors.RenderFailed(string(FormatPDF), err)
		}
		defer os.RemoveAll(tmp)
		staging = tmp
	}

	input := converterInput(doc)
	inputPath := filepath.Join(staging, doc.Meta.Target+".md")
	outputPath := filepath.Join(staging, doc.Meta.Target+".pdf")
	if err := os.WriteFile(inputPath, input, 0o644); err != nil {
		return nil, binderrors.RenderFailed(string(FormatPDF), fmt.Errorf("stage converter input: %w", err))
	}

	args := converterArgs(doc, cfg, inputPath, outputPath)

	cmd := exec.CommandContext(ctx, converter, args...)
	cmd.Dir = staging
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.Debug("invoking pdf converter",
		logfields.Target(doc.Meta.Target),
		logfields.Path(converter),
		slog.String("args", strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		// Converters report errors on either stream.
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		if output != "" {
			return nil, binderrors.RenderFailed(string(FormatPDF),
				fmt.Errorf("converter failed: %w: %s", err, output))
		}
		return nil, binderrors.RenderFailed(string(FormatPDF), fmt.Errorf("converter failed: %w", err))
	}

	payload, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, binderrors.RenderFailed(string(FormatPDF),
			fmt.Errorf("converter produced no output: %w", err))
	}

	h := bytes.Buffer{}
	h.Write(input)
	fmt.Fprintf(&h, "\nconverter=%s args=%s\n", cfg.Converter, strings.Join(args[:len(args)-3], " "))

	return &Artifact{
		Target:      doc.Meta.Target,
		Format:      FormatPDF,
		Version:     opts.Version,
		Filename:    doc.Meta.Target + ".pdf",
		Payload:     payload,
		Size:        int64(len(payload)),
		ContentHash: hashBytes(h.Bytes()),
		PayloadHash: hashBytes(payload),
		GeneratedAt: opts.GeneratedAt,
	}, nil
}

// converterInput is the assembled markdown without the TOC marker; the
// converter builds its own table of contents from the --toc flags.
func converterInput(doc *assemble.Document) []byte {
	md := doc.Markdown()
	md = strings.Replace(md, assemble.TOCMarker+"\n", "", 1)
	return []byte(md)
}

// converterArgs builds the invocation: configured extras first, then our
// computed flags, then input and output. The trailing three arguments are
// always <input> -o <output>.
func converterArgs(doc *assemble.Document, cfg config.PDFFormatConfig, inputPath, outputPath string) []string {
	args := append([]string{}, cfg.Args...)
	args = append(args, "--toc", "--toc-depth="+strconv.Itoa(cfg.TOCDepth))
	if cfg.Numbering {
		args = append(args, "--number-sections")
	}
	if cfg.PageSize != "" {
		args = append(args, "-V", "papersize="+cfg.PageSize)
	}
	if doc.Meta.Title != "" {
		args = append(args, "-M", "title="+doc.Meta.Title)
	}
	if doc.Meta.Author != "" {
		args = append(args, "-M", "author="+doc.Meta.Author)
	}
	args = append(args, inputPath, "-o", outputPath)
	return args
}
