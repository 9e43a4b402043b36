package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"text/template"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/config"
)

var templateFuncs = template.FuncMap{
	"join":  func(elems []string, sep string) string { return strings.Join(elems, sep) },
	"lines": func(elems []string) string { return strings.Join(elems, "\n") },
}

// Command runs one configured external tool. Each argument is a
// text/template; a rendered argument containing newlines expands into
// several arguments and empty results are dropped.
type Command struct {
	cfg     config.CommandConfig
	dir     string
	timeout time.Duration
	args    []*template.Template
}

// NewCommand parses the argument templates of cfg.
func NewCommand(cfg config.CommandConfig, dir string, timeout time.Duration) (*Command, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, ErrToolUnavailable
	}
	c := &Command{cfg: cfg, dir: dir, timeout: timeout}
	for i, a := range cfg.Args {
		tmpl, err := template.New(fmt.Sprintf("arg%d", i)).Funcs(templateFuncs).Option("missingkey=error").Parse(a)
		if err != nil {
			return nil, fmt.Errorf("parse argument %d of %s: %w", i, cfg.Command, err)
		}
		c.args = append(c.args, tmpl)
	}
	return c, nil
}

// Args renders the argument list for data.
func (c *Command) Args(data any) ([]string, error) {
	var out []string
	for _, tmpl := range c.args {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", tmpl.Name(), err)
		}
		for _, part := range strings.Split(buf.String(), "\n") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out, nil
}

// Run executes the tool with arguments rendered from data.
func (c *Command) Run(ctx context.Context, data any) error {
	args, err := c.Args(data)
	if err != nil {
		return err
	}
	bin, err := exec.LookPath(c.cfg.Command)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolNotFound, c.cfg.Command, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// #nosec G204 -- the command comes from the project configuration
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.dir
	cmd.Env = os.Environ()
	for k, v := range c.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running tool", slog.String("command", c.cfg.Command), slog.Int("args", len(args)), slog.String("dir", c.dir))
	runErr := cmd.Run()

	if s := stdout.String(); s != "" {
		slog.Debug("tool stdout", slog.String("command", c.cfg.Command), slog.String("output", tail(s)))
	}
	if runErr != nil {
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		if output != "" {
			return fmt.Errorf("%w: %s: %w: %s", ErrToolFailed, c.cfg.Command, runErr, tail(output))
		}
		return fmt.Errorf("%w: %s: %w", ErrToolFailed, c.cfg.Command, runErr)
	}
	return nil
}

// tail keeps the last lines of tool output for error messages.
func tail(s string) string {
	const keep = 20
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, "\n")
}

func render(text string, data any) (string, error) {
	tmpl, err := template.New("value").Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
