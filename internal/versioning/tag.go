package versioning

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/semver/v3"
)

// TagData is the data available to tag and tag-message templates.
type TagData struct {
	Version    string
	Project    string
	Properties map[string]string
}

// RenderTag renders a tag (or tag message) template.
func RenderTag(tmpl string, data TagData) (string, error) {
	t, err := template.New("tag").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse tag template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render tag template: %w", err)
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "", fmt.Errorf("tag template %q rendered an empty name", tmpl)
	}
	return out, nil
}

const versionMarker = "\x00version\x00"

// LatestRelease finds the highest released version among tags produced by
// tmpl. Prerelease tags are ignored. Returns "", nil when none match.
func LatestRelease(tags []string, tmpl string, data TagData) (string, *semver.Version, error) {
	data.Version = versionMarker
	pattern, err := RenderTag(tmpl, data)
	if err != nil {
		return "", nil, err
	}
	prefix, suffix, found := strings.Cut(pattern, versionMarker)
	if !found {
		return "", nil, fmt.Errorf("tag template %q does not contain the version", tmpl)
	}

	var bestTag string
	var best *semver.Version
	for _, tag := range tags {
		if !strings.HasPrefix(tag, prefix) || !strings.HasSuffix(tag, suffix) || len(tag) <= len(prefix)+len(suffix) {
			continue
		}
		v, err := semver.NewVersion(tag[len(prefix) : len(tag)-len(suffix)])
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestTag = v, tag
		}
	}
	return bestTag, best, nil
}
