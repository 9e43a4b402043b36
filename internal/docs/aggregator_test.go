package docs

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/packager"
	"git.home.luguber.info/inful/shipwright/internal/profile"
	"git.home.luguber.info/inful/shipwright/internal/storage"
	"git.home.luguber.info/inful/shipwright/internal/toolchain"
)

type fakeGenerator struct {
	calls []toolchain.DocRequest
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, req toolchain.DocRequest) error {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(filepath.Join(req.OutputDir, "index.html"), []byte("<html>"+req.Title+"</html>"), 0o600)
}

func contribution(module string, sources, classpath []string) Contribution {
	return Contribution{
		Module: module,
		Inputs: packager.DocInputs{
			Module:    module,
			Sources:   sources,
			Classpath: classpath,
			Links:     []profile.DocLink{{URL: "https://developer.android.com/reference/"}},
		},
	}
}

func TestMergeUnionsInputs(t *testing.T) {
	res := Merge([]Contribution{
		contribution("b", []string{"/b/B.java", "/shared/S.java"}, []string{"/sdk/android.jar", "/libs/b.jar"}),
		contribution("a", []string{"/a/A.java", "/shared/S.java"}, []string{"/sdk/android.jar", "/libs/a.jar"}),
	})

	require.Equal(t, []string{"a", "b"}, res.Included)
	require.Empty(t, res.Excluded)
	require.Equal(t, []string{"/a/A.java", "/b/B.java", "/shared/S.java"}, res.Sources)
	require.Equal(t, []string{"/libs/a.jar", "/libs/b.jar", "/sdk/android.jar"}, res.Classpath)
	require.Len(t, res.Links, 1)
}

func TestMergeReportsExcluded(t *testing.T) {
	res := Merge([]Contribution{
		contribution("a", []string{"/a/A.java"}, nil),
		{Module: "c", Err: errors.New("javadoc failed")},
	})
	require.Equal(t, []string{"a"}, res.Included)
	require.Equal(t, []Exclusion{{Module: "c", Reason: "javadoc failed"}}, res.Excluded)
	require.Equal(t, []string{"/a/A.java"}, res.Sources)
}

func TestAggregateInvokesGeneratorOnce(t *testing.T) {
	out := t.TempDir()
	readme := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("# Core\n\nCrash reporting core."), 0o600))

	a := contribution("acra-core", []string{"/core/A.java"}, []string{"/cp/x.jar"})
	a.Inputs.Readme = readme
	b := contribution("acra-mail", []string{"/mail/M.java"}, []string{"/cp/y.jar"})

	store, err := storage.NewFSStore(filepath.Join(out, ".shipwright"))
	require.NoError(t, err)
	gen := &fakeGenerator{}
	agg := NewAggregator(gen, store, Options{Project: "acra", Version: "5.7.1", OutputDir: out})

	res, err := agg.Aggregate(context.Background(), []Contribution{b, a})
	require.NoError(t, err)
	require.Len(t, gen.calls, 1)

	req := gen.calls[0]
	require.Equal(t, "acra 5.7.1", req.Title)
	require.Equal(t, []string{"/core/A.java", "/mail/M.java"}, req.Sources)
	require.Equal(t, []string{"/cp/x.jar", "/cp/y.jar"}, req.Classpath)
	require.Equal(t, filepath.Join(out, "javadoc"), req.OutputDir)

	overview, err := os.ReadFile(req.Overview)
	require.NoError(t, err)
	require.Contains(t, string(overview), "<h1>Core</h1>")
	require.Contains(t, string(overview), "<h2>acra-mail</h2>")

	require.Equal(t, "acra-5.7.1-javadoc.zip", res.Artifact.FileName())
	data, err := os.ReadFile(res.Artifact.Path)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	require.Equal(t, "index.html", zr.File[0].Name)

	ok, err := store.Exists(context.Background(), res.Artifact.Digest)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAggregateWithoutInputsFails(t *testing.T) {
	gen := &fakeGenerator{}
	agg := NewAggregator(gen, nil, Options{Project: "acra", Version: "1.0", OutputDir: t.TempDir()})

	res, err := agg.Aggregate(context.Background(), []Contribution{{Module: "a", Err: errors.New("skipped")}})
	require.ErrorIs(t, err, ErrNoInputs)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryDocs))
	require.Len(t, res.Excluded, 1)
	require.Empty(t, gen.calls)
}

func TestAggregateGeneratorFailure(t *testing.T) {
	boom := errors.New("javadoc: error")
	agg := NewAggregator(&fakeGenerator{err: boom}, nil, Options{Project: "acra", Version: "1.0", OutputDir: t.TempDir()})

	_, err := agg.Aggregate(context.Background(), []Contribution{contribution("a", []string{"/a/A.java"}, nil)})
	require.ErrorIs(t, err, boom)
}

func TestWriteOverviewWithoutReadmes(t *testing.T) {
	path, err := WriteOverview(filepath.Join(t.TempDir(), "overview.html"), "t", []string{"a"}, nil)
	require.NoError(t, err)
	require.Empty(t, path)
}
