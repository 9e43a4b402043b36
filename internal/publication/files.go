package publication

import (
	"context"
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	"git.home.luguber.info/inful/shipwright/internal/storage"
)

// File is one file of a publication as handed to transports.
type File struct {
	Name      string
	Kind      string // main|sources|docs|pom
	MediaType string
	Data      []byte
	Digest    digest.Digest
}

// Loader fetches stored artifact bytes by digest.
type Loader interface {
	Get(ctx context.Context, dgst digest.Digest) (*storage.Object, error)
}

// Files materializes every artifact of p plus its POM. Artifacts are read
// from the store when a digest is recorded, else from their path; content
// that no longer matches its digest is rejected.
func (p *Publication) Files(ctx context.Context, loader Loader) ([]File, error) {
	var files []File
	for _, a := range p.Artifacts() {
		data, err := load(ctx, loader, a)
		if err != nil {
			return nil, err
		}
		files = append(files, File{
			Name:      a.FileName(),
			Kind:      string(a.Kind),
			MediaType: artifact.MediaType(a.FileName()),
			Data:      data,
			Digest:    digest.FromBytes(data),
		})
	}
	pom, err := p.POM()
	if err != nil {
		return nil, err
	}
	files = append(files, File{
		Name:      p.POMFileName(),
		Kind:      "pom",
		MediaType: artifact.MediaType(p.POMFileName()),
		Data:      pom,
		Digest:    digest.FromBytes(pom),
	})
	return files, nil
}

func load(ctx context.Context, loader Loader, a artifact.Artifact) ([]byte, error) {
	if a.Digest != "" && loader != nil {
		obj, err := loader.Get(ctx, a.Digest)
		if err == nil {
			return obj.Data, nil
		}
		if !storage.IsNotFound(err) {
			return nil, fmt.Errorf("load %s: %w", a.FileName(), err)
		}
	}
	// #nosec G304 - artifact paths are produced by the packager
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.FileName(), err)
	}
	if a.Digest != "" && digest.FromBytes(data) != a.Digest {
		return nil, fmt.Errorf("load %s: content does not match digest %s", a.FileName(), a.Digest)
	}
	return data, nil
}
