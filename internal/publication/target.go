package publication

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"git.home.luguber.info/inful/shipwright/internal/auth"
	"git.home.luguber.info/inful/shipwright/internal/config"
)

// LocalURL names the user's local Maven repository.
const LocalURL = "local"

// Target is a resolved repository target.
type Target struct {
	Name        string
	URL         string
	Credentials auth.Credentials
}

// Transport delivers the files of one publication to one target.
type Transport interface {
	Publish(ctx context.Context, pub *Publication, files []File) error
}

// ResolveTargets resolves credential references of the configured repositories.
func ResolveTargets(repos []config.Repository, resolver auth.Resolver) ([]Target, error) {
	targets := make([]Target, 0, len(repos))
	for _, r := range repos {
		t := Target{Name: r.Name, URL: r.URL}
		if r.Credentials != "" && resolver != nil {
			creds, err := resolver.Resolve(r.Credentials)
			if err != nil {
				return nil, fmt.Errorf("repository %s: %w", r.Name, err)
			}
			t.Credentials = creds
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// LocalRepository is ~/.m2/repository.
func LocalRepository() string {
	return filepath.Join(xdg.Home, ".m2", "repository")
}

// NewTransport picks the transport for t by URL scheme: "local", file://,
// http(s):// and oci:// (oci+http:// for plain-HTTP registries).
func NewTransport(t Target) (Transport, error) {
	if t.URL == LocalURL {
		return &FileTransport{Root: LocalRepository()}, nil
	}
	u, err := url.Parse(t.URL)
	if err != nil {
		return nil, fmt.Errorf("target %s: invalid url: %w", t.Name, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return &FileTransport{Root: filepath.FromSlash(u.Path)}, nil
	case "":
		if filepath.IsAbs(t.URL) {
			return &FileTransport{Root: t.URL}, nil
		}
	case "http", "https":
		return NewHTTPTransport(t.URL, t.Credentials, nil), nil
	case "oci", "oci+http":
		return NewOCITransport(u.Host+u.Path, t.Credentials, u.Scheme == "oci+http"), nil
	}
	return nil, fmt.Errorf("target %s: unsupported repository url %q", t.Name, t.URL)
}
