package publication

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/project"
)

var coreModule = project.Module{Name: "acra-core", Version: "5.7.1", Description: "ACRA core"}

func art(kind artifact.Kind, classifier, ext string) artifact.Artifact {
	return artifact.Artifact{Kind: kind, Module: "acra-core", Version: "5.7.1", Classifier: classifier, Extension: ext}
}

func TestCompose(t *testing.T) {
	main := art(artifact.KindMain, "", "aar")
	sources := art(artifact.KindSources, artifact.ClassifierSources, "jar")
	docs := art(artifact.KindDocs, artifact.ClassifierDocs, "jar")

	tests := []struct {
		name    string
		arts    []artifact.Artifact
		wantErr string
	}{
		{name: "complete", arts: []artifact.Artifact{docs, main, sources}},
		{name: "main only", arts: []artifact.Artifact{main}},
		{name: "two sources", arts: []artifact.Artifact{main, sources, sources}, wantErr: "more than one sources"},
		{name: "two docs", arts: []artifact.Artifact{main, docs, docs}, wantErr: "more than one docs"},
		{name: "no main", arts: []artifact.Artifact{sources}, wantErr: "no main artifact"},
		{name: "two mains", arts: []artifact.Artifact{main, main}, wantErr: "2 main artifacts"},
		{name: "foreign artifact", arts: []artifact.Artifact{main, {Kind: artifact.KindSources, Module: "acra-mail"}}, wantErr: "belongs to module"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := Compose(coreModule, "ch.acra", tt.arts, config.Metadata{})
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.Equal(t, "aar", pub.Packaging)
				require.Equal(t, "ch.acra:acra-core:5.7.1", pub.Coordinates.String())
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
			var invalidErr *InvalidPublicationError
			require.True(t, errors.As(err, &invalidErr))
			require.Equal(t, "acra-core", invalidErr.Module)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryPublication))
		})
	}
}

func TestArtifactsOrder(t *testing.T) {
	pub, err := Compose(coreModule, "ch.acra", []artifact.Artifact{
		art(artifact.KindDocs, artifact.ClassifierDocs, "jar"),
		art(artifact.KindMain, "", "aar"),
	}, config.Metadata{})
	require.NoError(t, err)
	arts := pub.Artifacts()
	require.Len(t, arts, 2)
	require.Equal(t, artifact.KindMain, arts[0].Kind)
	require.Equal(t, artifact.KindDocs, arts[1].Kind)
}

func TestPOM(t *testing.T) {
	meta := config.Example().Metadata
	pub, err := Compose(coreModule, "ch.acra", []artifact.Artifact{art(artifact.KindMain, "", "aar")}, meta)
	require.NoError(t, err)

	pom, err := pub.POM()
	require.NoError(t, err)
	s := string(pom)
	require.True(t, strings.HasPrefix(s, "<?xml"))
	for _, want := range []string{
		"<groupId>ch.acra</groupId>",
		"<artifactId>acra-core</artifactId>",
		"<version>5.7.1</version>",
		"<packaging>aar</packaging>",
		"<description>ACRA core</description>",
		"<licenses>\n    <license>\n      <name>Apache-2.0</name>",
		"<developers>\n    <developer>\n      <id>f43nd1r</id>",
		"<developerConnection>scm:git:git@github.com:F43nd1r/acra.git</developerConnection>",
	} {
		require.Contains(t, s, want)
	}
	require.Equal(t, "acra-core-5.7.1.pom", pub.POMFileName())
}

func TestPOMWithoutOptionalSections(t *testing.T) {
	pub, err := Compose(coreModule, "ch.acra", []artifact.Artifact{art(artifact.KindMain, "", "jar")}, config.Metadata{})
	require.NoError(t, err)
	pom, err := pub.POM()
	require.NoError(t, err)
	require.NotContains(t, string(pom), "<scm>")
	require.NotContains(t, string(pom), "<licenses>")
	require.NotContains(t, string(pom), "<developers>")
}
