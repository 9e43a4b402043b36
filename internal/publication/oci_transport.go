package publication

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry/remote"
	orasauth "oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"git.home.luguber.info/inful/shipwright/internal/auth"
)

// ArtifactType marks publication manifests in OCI registries.
const ArtifactType = "application/vnd.shipwright.publication.v1"

// OCITransport pushes a publication as one OCI artifact: every file is a
// layer titled with its file name, and the manifest is tagged
// <artifact>-<version> inside <repository>.
type OCITransport struct {
	repository string
	creds      auth.Credentials
	plainHTTP  bool

	// open returns the push target; tests substitute an in-memory store.
	open func(ctx context.Context) (oras.Target, error)
}

func NewOCITransport(repository string, creds auth.Credentials, plainHTTP bool) *OCITransport {
	t := &OCITransport{repository: strings.Trim(repository, "/"), creds: creds, plainHTTP: plainHTTP}
	t.open = t.remote
	return t
}

func (t *OCITransport) remote(_ context.Context) (oras.Target, error) {
	repo, err := remote.NewRepository(t.repository)
	if err != nil {
		return nil, fmt.Errorf("oci repository %s: %w", t.repository, err)
	}
	repo.PlainHTTP = t.plainHTTP

	client := &orasauth.Client{
		Client: &http.Client{Transport: retry.NewTransport(http.DefaultTransport)},
		Cache:  orasauth.NewCache(),
	}
	if t.creds.Username != "" || t.creds.Token != "" {
		cred := orasauth.Credential{Username: t.creds.Username, Password: t.creds.Password}
		if t.creds.Token != "" {
			cred = orasauth.Credential{RefreshToken: t.creds.Token}
		}
		client.Credential = orasauth.StaticCredential(repo.Reference.Registry, cred)
	}
	repo.Client = client
	return repo, nil
}

// Tag is the manifest tag used for pub.
func (t *OCITransport) Tag(pub *Publication) string {
	return pub.Coordinates.Artifact + "-" + pub.Coordinates.Version
}

func (t *OCITransport) Publish(ctx context.Context, pub *Publication, files []File) error {
	target, err := t.open(ctx)
	if err != nil {
		return err
	}

	layers := make([]ocispec.Descriptor, 0, len(files))
	for _, f := range files {
		desc, err := oras.PushBytes(ctx, target, f.MediaType, f.Data)
		if err != nil {
			return fmt.Errorf("push %s: %w", f.Name, err)
		}
		desc.Annotations = map[string]string{ocispec.AnnotationTitle: f.Name}
		layers = append(layers, desc)
	}

	manifest, err := oras.PackManifest(ctx, target, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers: layers,
		ManifestAnnotations: map[string]string{
			ocispec.AnnotationTitle:   pub.Coordinates.String(),
			ocispec.AnnotationVersion: pub.Coordinates.Version,
		},
	})
	if err != nil {
		return fmt.Errorf("pack manifest: %w", err)
	}
	if err := target.Tag(ctx, manifest, t.Tag(pub)); err != nil {
		return fmt.Errorf("tag manifest: %w", err)
	}
	return nil
}
