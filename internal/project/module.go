// Package project enumerates the modules of a multi-module library project.
package project

import "path/filepath"

// Module is one buildable unit of the project. Modules are enumerated once
// per run and never mutated afterwards.
type Module struct {
	Name    string
	Kind    string // declared capability; mapped to a profile by the dispatcher
	Version string

	Dir           string   // module directory
	SourceDirs    []string // declared source roots
	GeneratedDirs []string // generated-source roots under OutputDir
	OutputDir     string   // generated output, removed by clean
	Classpath     []string // external library classpath entries

	Description string
	Readme      string // overview file, empty when the module has none
	Publish     bool
}

// LibsDir is where packaged artifacts for the module are written.
func (m Module) LibsDir() string {
	return filepath.Join(m.OutputDir, "libs")
}
