package fragment

import (
	"path"
	"strconv"
	"strings"
)

// kindByDir maps the fragment's top-level directory to a section kind.
var kindByDir = map[string]Kind{
	"front":        KindFrontMatter,
	"frontmatter":  KindFrontMatter,
	"front-matter": KindFrontMatter,
	"chapters":     KindChapter,
	"chapter":      KindChapter,
	"appendix":     KindAppendix,
	"appendices":   KindAppendix,
	"back":         KindBackMatter,
	"backmatter":   KindBackMatter,
	"back-matter":  KindBackMatter,
}

// stems that identify front/back matter when the directory gives no signal.
var frontStems = map[string]bool{
	"titlepage":  true,
	"title-page": true,
	"copyright":  true,
	"dedication": true,
	"epigraph":   true,
	"preface":    true,
	"foreword":   true,
}

var backStems = map[string]bool{
	"colophon":         true,
	"acknowledgements": true,
	"acknowledgments":  true,
	"about-the-author": true,
	"bibliography":     true,
	"glossary":         true,
}

// classifyKind derives the section kind from the fragment's relative path.
// Directory convention wins; filename stems break ties; everything else is
// a chapter.
func classifyKind(relPath string) Kind {
	dir, base := path.Split(relPath)
	if dir != "" {
		top := strings.ToLower(strings.SplitN(strings.Trim(dir, "/"), "/", 2)[0])
		if k, ok := kindByDir[top]; ok {
			return k
		}
	}

	stem := strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))
	stem = strings.TrimLeft(stem, "0123456789")
	stem = strings.Trim(stem, "-_.")
	switch {
	case frontStems[stem]:
		return KindFrontMatter
	case backStems[stem]:
		return KindBackMatter
	case strings.HasPrefix(stem, "appendix"):
		return KindAppendix
	default:
		return KindChapter
	}
}

// parseOrderKey extracts the numeric filename prefix (e.g. "03-routing.md"
// -> 3). Numeric is -1 when the name carries no prefix.
func parseOrderKey(relPath string) OrderKey {
	base := path.Base(relPath)
	key := OrderKey{Numeric: -1, Lexical: base}

	i := 0
	for i < len(base) && base[i] >= '0' && base[i] <= '9' {
		i++
	}
	if i == 0 || i == len(base) {
		return key
	}
	switch base[i] {
	case '-', '_', '.':
		if n, err := strconv.Atoi(base[:i]); err == nil {
			key.Numeric = n
		}
	}
	return key
}
