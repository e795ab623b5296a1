package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/fragment"
)

// testBook lays out a manuscript plus manifests and returns the resolver.
func testBook(t *testing.T, manifests map[string]string) *Resolver {
	t.Helper()
	root := t.TempDir()

	manuscript := filepath.Join(root, "manuscript")
	files := []string{
		"front/01-titlepage.md",
		"front/02-preface.md",
		"chapters/01-intro.md",
		"chapters/02-routing.md",
		"back/colophon.md",
	}
	for _, name := range files {
		p := filepath.Join(manuscript, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("# "+name+"\n\nbody\n"), 0o644))
	}

	manifestDir := filepath.Join(root, "manifests")
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))
	for target, content := range manifests {
		require.NoError(t, os.WriteFile(filepath.Join(manifestDir, target+".manifest"), []byte(content), 0o644))
	}

	store, err := fragment.NewDirStore(manuscript)
	require.NoError(t, err)
	return NewResolver(store, manifestDir, "full")
}

func TestResolvePreservesManifestOrder(t *testing.T) {
	// Deliberately not filesystem order: colophon before the intro.
	r := testBook(t, map[string]string{
		"full": "front/01-titlepage.md\nback/colophon.md\nchapters/01-intro.md\n",
	})

	res, err := r.Resolve("full")
	require.NoError(t, err)

	var got []string
	for _, f := range res.Fragments {
		got = append(got, f.Path)
	}
	want := []string{"front/01-titlepage.md", "back/colophon.md", "chapters/01-intro.md"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resolved order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMissingFragment(t *testing.T) {
	r := testBook(t, map[string]string{
		"full": "chapters/01-intro.md\nchapters/99-missing.md\n",
	})

	_, err := r.Resolve("full")
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindMissingFragment))
	pe, _ := binderrors.As(err)
	require.Equal(t, "chapters/99-missing.md", pe.Context["fragment"])
	require.Equal(t, 2, pe.Context["line"])
}

func TestResolveSampleSubsequence(t *testing.T) {
	r := testBook(t, map[string]string{
		"full":   "front/01-titlepage.md\nfront/02-preface.md\nchapters/01-intro.md\nchapters/02-routing.md\n",
		"sample": "front/02-preface.md\nchapters/01-intro.md\n",
	})

	res, err := r.Resolve("sample")
	require.NoError(t, err)
	require.Len(t, res.Fragments, 2)
}

func TestResolveSampleOrderViolation(t *testing.T) {
	r := testBook(t, map[string]string{
		"full":   "front/01-titlepage.md\nfront/02-preface.md\nchapters/01-intro.md\nchapters/02-routing.md\n",
		"sample": "chapters/01-intro.md\nfront/02-preface.md\n",
	})

	_, err := r.Resolve("sample")
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindSubsequenceViolation))
}

func TestResolveSampleEntryAbsentFromFull(t *testing.T) {
	r := testBook(t, map[string]string{
		"full":   "front/01-titlepage.md\nchapters/01-intro.md\n",
		"sample": "back/colophon.md\n",
	})

	_, err := r.Resolve("sample")
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindSubsequenceViolation))
}

func TestValidateAllTargets(t *testing.T) {
	r := testBook(t, map[string]string{
		"full":    "front/01-titlepage.md\nchapters/01-intro.md\nchapters/02-routing.md\n",
		"sample":  "front/01-titlepage.md\nchapters/01-intro.md\n",
		"excerpt": "chapters/02-routing.md\n",
	})
	require.NoError(t, r.Validate())
}

func TestValidateReportsViolation(t *testing.T) {
	r := testBook(t, map[string]string{
		"full":   "front/01-titlepage.md\nchapters/01-intro.md\n",
		"sample": "chapters/01-intro.md\nfront/01-titlepage.md\n",
	})

	err := r.Validate()
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindSubsequenceViolation))
}

func TestResolveStandaloneTargetWithoutFull(t *testing.T) {
	r := testBook(t, map[string]string{
		"excerpt": "chapters/02-routing.md\n",
	})

	res, err := r.Resolve("excerpt")
	require.NoError(t, err)
	require.Len(t, res.Fragments, 1)
}

func TestResolutionWords(t *testing.T) {
	r := testBook(t, map[string]string{
		"full": "chapters/01-intro.md\n",
	})
	res, err := r.Resolve("full")
	require.NoError(t, err)
	require.Equal(t, res.Fragments[0].Words, res.Words())
}
