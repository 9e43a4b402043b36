// Package artifact defines packaged build outputs and writes them as
// reproducible archives.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Kind classifies an artifact inside a publication.
type Kind string

const (
	KindMain    Kind = "main"
	KindSources Kind = "sources"
	KindDocs    Kind = "docs"
)

// Classifiers used in file names.
const (
	ClassifierSources = "sources"
	ClassifierDocs    = "javadoc"
)

// Artifact is a packaged file plus its content handle. The digest addresses
// the bytes in the artifact store; Path is the copy under the module's libs dir.
type Artifact struct {
	Kind       Kind
	Module     string
	Version    string
	Classifier string
	Extension  string
	Path       string
	Digest     digest.Digest
	Size       int64
}

// FileName follows <module>-<version>[-<classifier>].<ext>.
func FileName(module, version, classifier, ext string) string {
	name := module + "-" + version
	if classifier != "" {
		name += "-" + classifier
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}

// FileName returns the conventional file name of a.
func (a Artifact) FileName() string {
	return FileName(a.Module, a.Version, a.Classifier, a.Extension)
}

func (a Artifact) String() string {
	return fmt.Sprintf("%s(%s)", a.FileName(), a.Kind)
}

// MediaType returns the media type used when pushing a file with this extension.
func MediaType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jar":
		return "application/java-archive"
	case ".aar":
		return "application/vnd.android.aar"
	case ".zip":
		return "application/zip"
	case ".pom":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
