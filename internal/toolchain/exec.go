package toolchain

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/shipwright/internal/config"
)

// ExecCompiler runs the configured compiler command for each module.
type ExecCompiler struct {
	cmd           *Command
	output        string // template for the produced main artifact path
	classpathFile string // optional template for a file listing the compile classpath
}

// compileData is exposed to compiler argument templates.
type compileData struct {
	CompileRequest
	Version string
}

// NewExecCompiler builds a compiler from the toolchain configuration.
func NewExecCompiler(cfg config.ToolchainConfig, projectRoot string) (*ExecCompiler, error) {
	cmd, err := NewCommand(cfg.Compiler.CommandConfig, projectRoot, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	output := cfg.Compiler.Output
	if output == "" {
		output = "{{ .Module.OutputDir }}/outputs/{{ .Settings.MainExtension }}/{{ .Module.Name }}-release.{{ .Settings.MainExtension }}"
	}
	return &ExecCompiler{cmd: cmd, output: output, classpathFile: cfg.Compiler.ClasspathFile}, nil
}

func (c *ExecCompiler) Compile(ctx context.Context, req CompileRequest) (CompileOutput, error) {
	data := compileData{CompileRequest: req, Version: req.Module.Version}
	if err := c.cmd.Run(ctx, data); err != nil {
		return CompileOutput{}, err
	}

	mainFile, err := render(c.output, data)
	if err != nil {
		return CompileOutput{}, fmt.Errorf("render compiler output path: %w", err)
	}
	if !filepath.IsAbs(mainFile) {
		mainFile = filepath.Join(c.cmd.dir, mainFile)
	}
	if _, err := os.Stat(mainFile); err != nil {
		return CompileOutput{}, fmt.Errorf("%w: %s", ErrOutputMissing, mainFile)
	}

	out := CompileOutput{MainFile: mainFile}
	if c.classpathFile != "" {
		path, err := render(c.classpathFile, data)
		if err != nil {
			return CompileOutput{}, fmt.Errorf("render classpath file path: %w", err)
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.cmd.dir, path)
		}
		out.Classpath, err = readClasspath(path)
		if err != nil {
			return CompileOutput{}, err
		}
	}
	return out, nil
}

// readClasspath reads entries separated by newlines or the OS list separator.
func readClasspath(path string) ([]string, error) {
	// #nosec G304 - path comes from the configured compiler template
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read classpath file: %w", err)
	}
	defer f.Close()

	var entries []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		for _, e := range strings.Split(sc.Text(), string(os.PathListSeparator)) {
			if e = strings.TrimSpace(e); e != "" {
				entries = append(entries, e)
			}
		}
	}
	return entries, sc.Err()
}

// ExecDocGenerator runs the configured documentation generator.
type ExecDocGenerator struct {
	cmd *Command
}

func NewExecDocGenerator(cfg config.ToolchainConfig, projectRoot string) (*ExecDocGenerator, error) {
	cmd, err := NewCommand(cfg.DocGenerator, projectRoot, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &ExecDocGenerator{cmd: cmd}, nil
}

func (g *ExecDocGenerator) Generate(ctx context.Context, req DocRequest) error {
	if err := os.MkdirAll(req.OutputDir, 0o750); err != nil {
		return fmt.Errorf("create doc output: %w", err)
	}
	if err := g.cmd.Run(ctx, req); err != nil {
		return err
	}
	entries, err := os.ReadDir(req.OutputDir)
	if err != nil {
		return fmt.Errorf("read doc output: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s", ErrOutputMissing, req.OutputDir)
	}
	return nil
}
