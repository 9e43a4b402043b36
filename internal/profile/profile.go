// Package profile maps a module's declared capability to a configuration
// profile and derives the module's effective build settings from it.
package profile

import (
	"fmt"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/project"
)

// Profile is a closed set of configuration variants. New variants are added
// by defining a type in this package; the unexported method keeps the set sealed.
type Profile interface {
	Name() string
	profile()
}

// LibraryProfile applies to platform libraries: platform packaging, SDK
// settings, offline links to platform reference docs.
type LibraryProfile struct{}

// PlainProfile applies to plain JVM libraries.
type PlainProfile struct{}

func (LibraryProfile) Name() string { return "library" }
func (LibraryProfile) profile()     {}
func (PlainProfile) Name() string   { return "plain" }
func (PlainProfile) profile()       {}

// kinds maps declared capabilities to profiles.
var kinds = map[string]Profile{
	"library":         LibraryProfile{},
	"android-library": LibraryProfile{},
	"plain":           PlainProfile{},
	"java":            PlainProfile{},
	"java-library":    PlainProfile{},
}

// Kinds returns the recognized capability names, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// UnknownProfileError is returned when a module's kind maps to no profile.
type UnknownProfileError struct {
	Module string
	Kind   string
}

func (e *UnknownProfileError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("module %s declares no kind", e.Module)
	}
	return fmt.Sprintf("module %s has unknown kind %q", e.Module, e.Kind)
}

// Resolve returns the profile for m. It is total over the recognized kinds
// and deterministic for everything else.
func Resolve(m project.Module) (Profile, error) {
	if p, ok := kinds[strings.ToLower(strings.TrimSpace(m.Kind))]; ok {
		return p, nil
	}
	return nil, ferrors.WrapError(&UnknownProfileError{Module: m.Name, Kind: m.Kind}, ferrors.CategoryProfile, "profile resolution failed").
		WithContext("module", m.Name).
		WithContext("kind", m.Kind).
		Build()
}
