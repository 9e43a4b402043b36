package publication

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	"git.home.luguber.info/inful/shipwright/internal/auth"
	"git.home.luguber.info/inful/shipwright/internal/config"
	"git.home.luguber.info/inful/shipwright/internal/storage"
)

// stagedPublication writes a main and sources artifact into a store and
// composes a publication over them.
func stagedPublication(t *testing.T) (*Publication, *storage.FSStore) {
	t.Helper()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	var arts []artifact.Artifact
	for _, a := range []artifact.Artifact{
		art(artifact.KindMain, "", "aar"),
		art(artifact.KindSources, artifact.ClassifierSources, "jar"),
	} {
		data := []byte("content of " + a.FileName())
		dgst, err := store.Put(context.Background(), data, storage.Metadata{Kind: string(a.Kind)})
		require.NoError(t, err)
		a.Digest = dgst
		a.Size = int64(len(data))
		arts = append(arts, a)
	}
	pub, err := Compose(coreModule, "ch.acra", arts, config.Example().Metadata)
	require.NoError(t, err)
	return pub, store
}

func TestFilesFromStore(t *testing.T) {
	pub, store := stagedPublication(t)
	files, err := pub.Files(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, files, 3)
	require.Equal(t, "acra-core-5.7.1.aar", files[0].Name)
	require.Equal(t, []byte("content of acra-core-5.7.1.aar"), files[0].Data)
	require.Equal(t, "acra-core-5.7.1-sources.jar", files[1].Name)
	require.Equal(t, "pom", files[2].Kind)
}

func TestFilesFallBackToPathAndVerifyDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acra-core-5.7.1.aar")
	require.NoError(t, os.WriteFile(path, []byte("aar"), 0o600))

	a := art(artifact.KindMain, "", "aar")
	a.Path = path
	a.Digest = digest.FromString("aar")
	pub, err := Compose(coreModule, "ch.acra", []artifact.Artifact{a}, config.Metadata{})
	require.NoError(t, err)

	emptyStore, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	files, err := pub.Files(context.Background(), emptyStore)
	require.NoError(t, err)
	require.Equal(t, []byte("aar"), files[0].Data)

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o600))
	_, err = pub.Files(context.Background(), emptyStore)
	require.ErrorContains(t, err, "does not match digest")
}

func TestFileTransportWritesMavenLayout(t *testing.T) {
	pub, store := stagedPublication(t)
	files, err := pub.Files(context.Background(), store)
	require.NoError(t, err)

	root := t.TempDir()
	tr, err := NewTransport(Target{Name: "dir", URL: "file://" + root})
	require.NoError(t, err)
	require.NoError(t, tr.Publish(context.Background(), pub, files))

	dir := filepath.Join(root, "ch", "acra", "acra-core", "5.7.1")
	for _, name := range []string{
		"acra-core-5.7.1.aar", "acra-core-5.7.1.aar.sha1", "acra-core-5.7.1.aar.md5",
		"acra-core-5.7.1-sources.jar", "acra-core-5.7.1.pom", "acra-core-5.7.1.pom.sha1",
	} {
		require.FileExists(t, filepath.Join(dir, name))
	}
	sha, err := os.ReadFile(filepath.Join(dir, "acra-core-5.7.1.aar.sha1"))
	require.NoError(t, err)
	require.Len(t, sha, 40)
}

func TestNewTransport(t *testing.T) {
	tests := []struct {
		url     string
		want    any
		wantErr bool
	}{
		{url: "local", want: &FileTransport{}},
		{url: "file:///srv/maven", want: &FileTransport{}},
		{url: "/srv/maven", want: &FileTransport{}},
		{url: "https://api.bintray.com/maven/acra/maven/ACRA/;publish=1", want: &HTTPTransport{}},
		{url: "oci://ghcr.io/acra/maven", want: &OCITransport{}},
		{url: "ftp://example.com", wantErr: true},
		{url: "relative/dir", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			tr, err := NewTransport(Target{Name: "t", URL: tt.url})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.IsType(t, tt.want, tr)
		})
	}
	tr, err := NewTransport(Target{URL: LocalURL})
	require.NoError(t, err)
	require.Equal(t, LocalRepository(), tr.(*FileTransport).Root)
}

func TestHTTPTransport(t *testing.T) {
	var mu sync.Mutex
	uploads := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "f43nd1r" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		uploads[r.URL.Path] = body
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	pub, store := stagedPublication(t)
	files, err := pub.Files(context.Background(), store)
	require.NoError(t, err)

	tr := NewHTTPTransport(srv.URL+"/maven/;publish=1", auth.Credentials{Username: "f43nd1r", Password: "secret"}, srv.Client())
	require.NoError(t, tr.Publish(context.Background(), pub, files))
	require.Len(t, uploads, 9)
	require.Equal(t, []byte("content of acra-core-5.7.1.aar"), uploads["/maven/ch/acra/acra-core/5.7.1/acra-core-5.7.1.aar;publish=1"])

	bad := NewHTTPTransport(srv.URL+"/maven", auth.Credentials{Username: "f43nd1r", Password: "wrong"}, srv.Client())
	err = bad.Publish(context.Background(), pub, files)
	require.ErrorContains(t, err, "401")
}

func TestOCITransportPushesTaggedManifest(t *testing.T) {
	pub, store := stagedPublication(t)
	files, err := pub.Files(context.Background(), store)
	require.NoError(t, err)

	mem := memory.New()
	tr := NewOCITransport("registry.example.com/acra", auth.Credentials{}, false)
	tr.open = func(context.Context) (oras.Target, error) { return mem, nil }
	require.NoError(t, tr.Publish(context.Background(), pub, files))

	desc, err := mem.Resolve(context.Background(), "acra-core-5.7.1")
	require.NoError(t, err)
	require.Equal(t, ocispec.MediaTypeImageManifest, desc.MediaType)

	ok, err := mem.Exists(context.Background(), ocispec.Descriptor{
		MediaType: files[0].MediaType,
		Digest:    files[0].Digest,
		Size:      int64(len(files[0].Data)),
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResolveTargets(t *testing.T) {
	repos := []config.Repository{
		{Name: "mavenLocal", URL: "local"},
		{Name: "bintray", URL: "https://example.com", Credentials: "BINTRAY"},
	}
	resolver := auth.EnvResolver{Lookup: func(k string) (string, bool) {
		switch k {
		case "BINTRAY_USERNAME":
			return "u", true
		case "BINTRAY_PASSWORD":
			return "p", true
		}
		return "", false
	}}
	targets, err := ResolveTargets(repos, resolver)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.True(t, targets[0].Credentials.IsZero())
	require.Equal(t, "u", targets[1].Credentials.Username)

	_, err = ResolveTargets([]config.Repository{{Name: "x", URL: "https://x", Credentials: "NOPE"}}, resolver)
	var authErr *auth.AuthError
	require.True(t, errors.As(err, &authErr))
}
