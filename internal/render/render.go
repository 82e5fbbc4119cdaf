// Package render substitutes ${NAME} placeholders in the task definition
// template. Rendering is all-or-nothing: an unresolved placeholder aborts
// before any output is produced, so a rendered document never contains a
// leftover token.
package render

import (
	"fmt"
	"os"
	"strings"
)

// Render replaces every ${NAME} token in template with values[NAME].
// It fails on the first token with no corresponding value.
func Render(template string, values map[string]string) (string, error) {
	var b strings.Builder
	rest := template
	for {
		idx := strings.Index(rest, "${")
		if idx == -1 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:idx])
		rest = rest[idx+2:]

		end := strings.Index(rest, "}")
		if end == -1 {
			return "", fmt.Errorf("unterminated placeholder near %q", truncate(rest, 20))
		}
		name := rest[:end]
		value, ok := values[name]
		if !ok {
			return "", fmt.Errorf("no value for placeholder ${%s}", name)
		}
		b.WriteString(value)
		rest = rest[end+1:]
	}
}

// RenderFile renders template and writes the result to path. The output
// file is only written after rendering succeeded in full.
func RenderFile(template string, values map[string]string, path string) error {
	out, err := Render(template, values)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write rendered descriptor: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
