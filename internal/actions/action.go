// Package actions builds the shell commands that carry out each item's
// install, remove and configure verbs. Commands are resolved once, when the
// config is loaded; the engine only ever passes them through.
package actions

import (
	"fmt"
	"strings"

	"github.com/atomikpanda/mintyforge/internal/config"
	"github.com/atomikpanda/mintyforge/internal/template"
)

// Env is the host context commands are built for.
type Env struct {
	User string // owner of cloned theme directories
	Home string
}

func (e Env) params() map[string]any {
	return map[string]any{"User": e.User, "Home": e.Home}
}

// Resolve returns item with its Commands filled in.
func Resolve(item config.Item, env Env) (config.Item, error) {
	item, err := template.RenderItem(item, template.Params(item, env.params()))
	if err != nil {
		return item, err
	}

	switch s := item.Spec.(type) {
	case config.PackageSpec:
		item.Commands = packageCommands(s.Pattern)
	case config.FlatpakSpec:
		item.Commands = flatpakCommands(s)
	case config.ThemeSpec:
		if item.Commands, err = themeCommands(s, env.User); err != nil {
			return item, fmt.Errorf("%s: %w", item.Name, err)
		}
	case config.ExternalSpec:
		item.Commands = config.Commands{Install: strings.TrimSpace(s.Cmd)}
	case config.SettingSpec:
		item.Commands = settingCommands(s)
	default:
		return item, fmt.Errorf("no command builder for %T", item.Spec)
	}
	return item, nil
}

// Bind resolves the commands of every item in cfg and returns the result.
// cfg itself is not modified.
func Bind(cfg config.Config, env Env) (config.Config, error) {
	out := make(config.Config, len(cfg))
	for bi, b := range cfg {
		items := make([]config.Item, len(b.Items))
		for ii, it := range b.Items {
			resolved, err := Resolve(it, env)
			if err != nil {
				return nil, fmt.Errorf("batch %s: %w", b.Name, err)
			}
			items[ii] = resolved
		}
		b.Items = items
		out[bi] = b
	}
	return out, nil
}

// Describe returns a human-readable summary of running verb on item.
func Describe(item config.Item, verb string) string {
	switch s := item.Spec.(type) {
	case config.PackageSpec:
		return fmt.Sprintf("%s package %q via apt", verb, s.Pattern)
	case config.FlatpakSpec:
		return fmt.Sprintf("%s flatpak %q from %s", verb, s.AppID, s.Remote)
	case config.ThemeSpec:
		return fmt.Sprintf("%s %s %q into %s", verb, item.Kind, s.NameToUse, s.Dest)
	case config.SettingSpec:
		return fmt.Sprintf("set %s %s = %s", s.Schema, s.Key, s.Value)
	default:
		return fmt.Sprintf("%s %q", verb, item.Name)
	}
}

// Quote wraps s in single quotes for sh.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
