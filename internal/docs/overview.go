package docs

import (
	"bytes"
	"fmt"
	"html"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// WriteOverview renders the module READMEs into a single overview page for
// the documentation generator and returns its path. Modules without a
// README get a heading only. Returns "" when no module has a README.
func WriteOverview(path, title string, modules []string, readmes map[string]string) (string, error) {
	if len(readmes) == 0 {
		return "", nil
	}
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<html>\n<head><title>%s</title></head>\n<body>\n", html.EscapeString(title))
	for _, name := range modules {
		fmt.Fprintf(&buf, "<h2>%s</h2>\n", html.EscapeString(name))
		readme, ok := readmes[name]
		if !ok {
			continue
		}
		// #nosec G304 - README path comes from the module registry
		src, err := os.ReadFile(readme)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", readme, err)
		}
		if err := md.Convert(src, &buf); err != nil {
			return "", fmt.Errorf("render %s: %w", readme, err)
		}
	}
	buf.WriteString("</body>\n</html>\n")

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write overview: %w", err)
	}
	return path, nil
}
