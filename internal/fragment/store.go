package fragment

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Store provides read-only access to fragments by path.
type Store interface {
	// Read resolves one fragment. Returns ErrNotFound if no file backs
	// the path.
	Read(relPath string) (*Fragment, error)

	// List returns every fragment under the root, sorted by path.
	List() ([]*Fragment, error)

	// Root returns the manuscript root directory.
	Root() string
}

// ErrNotFound is returned when no fragment backs the requested path.
type ErrNotFound struct {
	Path string
}

func (e ErrNotFound) Error() string {
	return "fragment not found: " + e.Path
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}

// manuscript file extensions recognized by List.
var contentExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// DirStore reads fragments from a manuscript directory tree.
type DirStore struct {
	root string
}

// NewDirStore validates the root and returns a store over it.
func NewDirStore(root string) (*DirStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("manuscript dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("manuscript dir %s is not a directory", root)
	}
	return &DirStore{root: root}, nil
}

func (s *DirStore) Root() string { return s.root }

// Read resolves one fragment by its slash-separated relative path.
func (s *DirStore) Read(relPath string) (*Fragment, error) {
	clean, err := s.safeJoin(relPath)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Path: relPath}
		}
		return nil, fmt.Errorf("reading fragment %s: %w", relPath, err)
	}

	return s.build(path.Clean(relPath), content), nil
}

// List walks the tree and returns every recognized content file.
func (s *DirStore) List() ([]*Fragment, error) {
	var fragments []*Fragment
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != s.root {
				return fs.SkipDir
			}
			return nil
		}
		if !contentExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		fragments = append(fragments, s.build(filepath.ToSlash(rel), content))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing manuscript %s: %w", s.root, err)
	}
	sort.Slice(fragments, func(i, j int) bool { return fragments[i].Path < fragments[j].Path })
	return fragments, nil
}

// safeJoin resolves relPath under the root, rejecting escapes.
func (s *DirStore) safeJoin(relPath string) (string, error) {
	if relPath == "" {
		return "", ErrNotFound{Path: relPath}
	}
	clean := path.Clean(relPath)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("fragment path %q escapes manuscript root", relPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *DirStore) build(relPath string, content []byte) *Fragment {
	return &Fragment{
		Path:     relPath,
		Kind:     classifyKind(relPath),
		OrderKey: parseOrderKey(relPath),
		Content:  content,
		Hash:     hashContent(content),
		Title:    extractTitle(content),
		Words:    countWords(content),
	}
}
