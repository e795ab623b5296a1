package config

// FormatsConfig carries the explicit per-format configuration records.
// Renderers receive exactly one of these; nothing format-specific is read
// from global state.
type FormatsConfig struct {
	HTML HTMLFormatConfig `yaml:"html"`
	EPUB EPUBFormatConfig `yaml:"epub"`
	PDF  PDFFormatConfig  `yaml:"pdf"`
}

// HTMLFormatConfig configures the single-file web document output.
type HTMLFormatConfig struct {
	TOCDepth   int    `yaml:"toc_depth,omitempty"`
	Numbering  bool   `yaml:"numbering,omitempty"`
	Stylesheet string `yaml:"stylesheet,omitempty"`
}

// EPUBFormatConfig configures the reflowable e-book package output.
type EPUBFormatConfig struct {
	TOCDepth   int    `yaml:"toc_depth,omitempty"`
	Cover      string `yaml:"cover,omitempty"`
	Stylesheet string `yaml:"stylesheet,omitempty"`
}

// PDFFormatConfig configures the print-ready output. Conversion is delegated
// to an external converter binary; bindery prepares its input and invokes it.
type PDFFormatConfig struct {
	Converter string   `yaml:"converter,omitempty"`
	Args      []string `yaml:"args,omitempty"`
	PageSize  string   `yaml:"page_size,omitempty"`
	TOCDepth  int      `yaml:"toc_depth,omitempty"`
	Numbering bool     `yaml:"numbering,omitempty"`
}
