package profile

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/project"
)

// DocLink is an offline link handed to the documentation generator.
type DocLink struct {
	URL         string
	PackageList string
}

// Settings are the effective build settings of one module. Values are
// computed by Apply and never modified afterwards.
type Settings struct {
	Profile string

	SourceCompatibility string
	TargetCompatibility string
	LintAbortOnError    bool
	Minify              bool
	VersionNameSuffix   string

	CompileSDK        int
	TargetSDK         int
	MinSDK            int
	BuildToolsVersion string

	// PlatformPackaging is true when the main artifact is a platform archive.
	PlatformPackaging bool
	MainExtension     string

	BootClasspath  []string
	DocLinks       []DocLink
	TestProperties map[string]string
}

// Apply derives the effective settings of m under p. It is pure: the same
// inputs always give equal settings, and nothing is read from disk.
func Apply(m project.Module, p Profile, platform config.Platform) (Settings, error) {
	s := Settings{
		Profile:             p.Name(),
		SourceCompatibility: platform.JavaCompatibility,
		TargetCompatibility: platform.JavaCompatibility,
		MainExtension:       "jar",
		TestProperties:      map[string]string{},
	}

	switch p.(type) {
	case LibraryProfile:
		sdk, err := strconv.Atoi(strings.TrimSpace(platform.AndroidVersion))
		if err != nil {
			return Settings{}, ferrors.WrapError(err, ferrors.CategoryProfile, fmt.Sprintf("platform.android_version %q is not an SDK level", platform.AndroidVersion)).
				WithContext("module", m.Name).
				Build()
		}
		s.CompileSDK = sdk
		s.TargetSDK = sdk
		s.MinSDK = platform.AndroidMinVersion
		s.BuildToolsVersion = platform.BuildToolsVersion
		s.VersionNameSuffix = m.Version
		s.LintAbortOnError = false
		s.Minify = false
		s.PlatformPackaging = true
		s.MainExtension = "aar"
		s.TestProperties["robolectric.logging.enabled"] = "true"

		s.BootClasspath = slices.Clone(platform.BootClasspath)
		if len(s.BootClasspath) == 0 && platform.SDKDir != "" {
			s.BootClasspath = []string{filepath.Join(platform.SDKDir, "platforms", "android-"+strconv.Itoa(sdk), "android.jar")}
		}
		if platform.ReferenceDocsURL != "" {
			s.DocLinks = []DocLink{{
				URL:         platform.ReferenceDocsURL,
				PackageList: filepath.Join(platform.SDKDir, "docs", "reference"),
			}}
		}
	case PlainProfile:
		s.LintAbortOnError = true
	default:
		return Settings{}, ferrors.InternalError(fmt.Sprintf("no settings for profile %s", p.Name())).Build()
	}
	return s, nil
}

// MainFileName is the main artifact file name for m under s.
func (s Settings) MainFileName(m project.Module) string {
	return fmt.Sprintf("%s-%s.%s", m.Name, m.Version, s.MainExtension)
}
