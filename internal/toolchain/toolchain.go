// Package toolchain abstracts the external compiler and documentation
// generator. The engine only sees the Compiler and DocGenerator interfaces;
// the exec-backed implementations run configured commands.
package toolchain

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/shipwright/internal/profile"
	"git.home.luguber.info/inful/shipwright/internal/project"
)

var (
	ErrToolNotFound    = errors.New("tool not found")
	ErrToolFailed      = errors.New("tool execution failed")
	ErrOutputMissing   = errors.New("tool produced no output")
	ErrToolUnavailable = errors.New("tool not configured")
)

// CompileRequest asks for the main artifact of one module.
type CompileRequest struct {
	Module   project.Module
	Settings profile.Settings
}

// CompileOutput is what the compiler reports back.
type CompileOutput struct {
	MainFile  string   // path of the produced main artifact
	Classpath []string // resolved compile classpath, fed to the doc generator
}

// Compiler produces a module's main artifact.
type Compiler interface {
	Compile(ctx context.Context, req CompileRequest) (CompileOutput, error)
}

// DocRequest is one documentation generator invocation.
type DocRequest struct {
	Title     string
	Sources   []string
	Classpath []string
	Links     []profile.DocLink
	Overview  string // optional overview HTML file
	OutputDir string
}

// DocGenerator renders API documentation into req.OutputDir.
type DocGenerator interface {
	Generate(ctx context.Context, req DocRequest) error
}
