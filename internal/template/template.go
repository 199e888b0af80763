// Package template renders Go template strings against a parameter map.
// User-supplied commands in the config files may use {{ .User }},
// {{ .Home }}, {{ .Dest }} and {{ .Name }}.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/atomikpanda/mintyforge/internal/config"
)

// Render executes the Go template string s with params as the data object.
// A reference to a key missing from params is an error.
func Render(s string, params map[string]any) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	t, err := template.New("").Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", s, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("execute template %q: %w", s, err)
	}
	return buf.String(), nil
}

// Params returns the template data for item: base merged with the item's
// own Name and, for themes, Dest and Source.
func Params(item config.Item, base map[string]any) map[string]any {
	params := make(map[string]any, len(base)+3)
	for k, v := range base {
		params[k] = v
	}
	params["Name"] = item.Name
	if ts, ok := item.Spec.(config.ThemeSpec); ok {
		params["Dest"] = ts.Dest
		params["Source"] = ts.Source
	}
	return params
}

// RenderItem renders the user-supplied command fields of item's Spec. Other
// fields are data, not commands, and are returned untouched.
func RenderItem(item config.Item, params map[string]any) (config.Item, error) {
	switch s := item.Spec.(type) {
	case config.ExternalSpec:
		cmd, err := Render(s.Cmd, params)
		if err != nil {
			return item, fmt.Errorf("render item %q: %w", item.Name, err)
		}
		s.Cmd = cmd
		item.Spec = s
	case config.ThemeSpec:
		userCmd, err := Render(s.UserCmd, params)
		if err != nil {
			return item, fmt.Errorf("render item %q: %w", item.Name, err)
		}
		rootCmd, err := Render(s.RootCmd, params)
		if err != nil {
			return item, fmt.Errorf("render item %q: %w", item.Name, err)
		}
		s.UserCmd, s.RootCmd = userCmd, rootCmd
		item.Spec = s
	}
	return item, nil
}
