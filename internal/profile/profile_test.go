package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/project"
)

var platform = config.Platform{
	AndroidVersion:    "29",
	AndroidMinVersion: 14,
	BuildToolsVersion: "29.0.3",
	JavaCompatibility: "1.8",
	SDKDir:            "/sdk",
	ReferenceDocsURL:  "http://d.android.com/reference",
}

func TestResolveTotalOverRecognizedKinds(t *testing.T) {
	for _, kind := range Kinds() {
		p, err := Resolve(project.Module{Name: "m", Kind: kind})
		require.NoError(t, err, kind)
		require.NotNil(t, p)

		again, err := Resolve(project.Module{Name: "m", Kind: kind})
		require.NoError(t, err)
		require.Equal(t, p, again)
	}

	p, err := Resolve(project.Module{Name: "m", Kind: " Android-Library "})
	require.NoError(t, err)
	require.Equal(t, LibraryProfile{}, p)
}

func TestKindsAreSorted(t *testing.T) {
	require.Equal(t, []string{"android-library", "java", "java-library", "library", "plain"}, Kinds())
}

func TestResolveUnknownKind(t *testing.T) {
	for _, kind := range []string{"", "kotlin-multiplatform", "app"} {
		_, err := Resolve(project.Module{Name: "acra-x", Kind: kind})
		require.Error(t, err)

		var upe *UnknownProfileError
		require.True(t, errors.As(err, &upe))
		require.Equal(t, "acra-x", upe.Module)
		require.Equal(t, kind, upe.Kind)
		require.True(t, ferrors.HasCategory(err, ferrors.CategoryProfile))
	}
}

func TestApplyLibrary(t *testing.T) {
	m := project.Module{Name: "acra-core", Version: "5.7.1"}
	s, err := Apply(m, LibraryProfile{}, platform)
	require.NoError(t, err)

	require.Equal(t, "library", s.Profile)
	require.Equal(t, 29, s.CompileSDK)
	require.Equal(t, 29, s.TargetSDK)
	require.Equal(t, 14, s.MinSDK)
	require.Equal(t, "29.0.3", s.BuildToolsVersion)
	require.Equal(t, "5.7.1", s.VersionNameSuffix)
	require.Equal(t, "1.8", s.SourceCompatibility)
	require.False(t, s.LintAbortOnError)
	require.False(t, s.Minify)
	require.True(t, s.PlatformPackaging)
	require.Equal(t, "acra-core-5.7.1.aar", s.MainFileName(m))
	require.Equal(t, []string{"/sdk/platforms/android-29/android.jar"}, s.BootClasspath)
	require.Equal(t, []DocLink{{URL: "http://d.android.com/reference", PackageList: "/sdk/docs/reference"}}, s.DocLinks)
	require.Equal(t, "true", s.TestProperties["robolectric.logging.enabled"])
}

func TestApplyPlain(t *testing.T) {
	m := project.Module{Name: "acra-annotations", Version: "5.7.1"}
	s, err := Apply(m, PlainProfile{}, platform)
	require.NoError(t, err)

	require.Equal(t, "plain", s.Profile)
	require.False(t, s.PlatformPackaging)
	require.True(t, s.LintAbortOnError)
	require.Zero(t, s.CompileSDK)
	require.Empty(t, s.DocLinks)
	require.Equal(t, "acra-annotations-5.7.1.jar", s.MainFileName(m))
}

func TestApplyIsPure(t *testing.T) {
	m := project.Module{Name: "acra-core", Version: "1.0.0"}
	first, err := Apply(m, LibraryProfile{}, platform)
	require.NoError(t, err)
	second, err := Apply(m, LibraryProfile{}, platform)
	require.NoError(t, err)
	require.Equal(t, first, second)

	first.BootClasspath[0] = "mutated"
	third, err := Apply(m, LibraryProfile{}, platform)
	require.NoError(t, err)
	require.Equal(t, second, third)
}

func TestApplyLibraryRejectsBadSDK(t *testing.T) {
	bad := platform
	bad.AndroidVersion = "Q"
	_, err := Apply(project.Module{Name: "acra-core"}, LibraryProfile{}, bad)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryProfile))
}
