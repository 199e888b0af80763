// Package desktop builds the batch that switches the Cinnamon desktop and
// the login greeter to a chosen set of themes.
package desktop

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/atomikpanda/mintyforge/internal/actions"
	"github.com/atomikpanda/mintyforge/internal/config"
)

// BatchName is the name of the batch Build returns.
const BatchName = "desktop"

const (
	interfaceSchema = "org.cinnamon.desktop.interface"
	wmSchema        = "org.cinnamon.desktop.wm.preferences"
)

// Themes are the theme directory names (name_to_use) to switch to. Empty
// fields are left unchanged.
type Themes struct {
	GTK    string
	Icon   string
	Cursor string
}

// Empty reports whether no theme was chosen.
func (t Themes) Empty() bool {
	return t.GTK == "" && t.Icon == "" && t.Cursor == ""
}

// Options locate the files the desktop batch reads and writes.
type Options struct {
	GreeterConf     string // slick-greeter config, e.g. /etc/lightdm/slick-greeter.conf
	GreeterTemplate string // copied to GreeterConf when it does not exist yet
	DconfBase       string // optional dconf dump the themes are merged into
	DconfOut        string // where the merged snapshot is written; empty disables dconf
}

// Build writes the merged dconf snapshot and returns the desktop batch with
// its commands resolved for env.
func Build(t Themes, opts Options, env actions.Env) (config.Batch, error) {
	if t.Empty() {
		return config.Batch{}, errors.New("no theme selected")
	}

	items := []config.Item{{
		Name:        "crudini",
		Kind:        config.KindPackage,
		Description: "INI editor used for the greeter config",
		Spec:        config.PackageSpec{Pattern: "crudini"},
	}}

	if opts.DconfOut != "" {
		if err := writeSnapshot(t, opts); err != nil {
			return config.Batch{}, err
		}
		items = append(items, config.Item{
			Name:        "dconf-snapshot",
			Kind:        config.KindExternal,
			Description: "Load the merged dconf snapshot",
			Spec:        config.ExternalSpec{Cmd: "dconf load / < " + actions.Quote(opts.DconfOut), Always: true},
		})
	}

	items = append(items, settingItems(t)...)

	if opts.GreeterConf != "" {
		items = append(items, config.Item{
			Name:        "slick-greeter",
			Kind:        config.KindExternal,
			Description: "Apply the themes to the login screen",
			Spec:        config.ExternalSpec{Cmd: greeterCommand(t, opts), Always: true},
		})
	}

	for i := range items {
		resolved, err := actions.Resolve(items[i], env)
		if err != nil {
			return config.Batch{}, err
		}
		items[i] = resolved
	}
	return config.Batch{
		Name:   BatchName,
		Title:  "Apply themes to the desktop",
		Mode:   config.ModeInstall,
		Hidden: true,
		Items:  items,
	}, nil
}

func settingItems(t Themes) []config.Item {
	var items []config.Item
	add := func(name, schema, key, value string) {
		if value == "" {
			return
		}
		items = append(items, config.Item{
			Name: name,
			Kind: config.KindSetting,
			Spec: config.SettingSpec{Schema: schema, Key: key, Value: value},
		})
	}
	add("gtk-theme", interfaceSchema, "gtk-theme", t.GTK)
	add("wm-theme", wmSchema, "theme", t.GTK)
	add("icon-theme", interfaceSchema, "icon-theme", t.Icon)
	add("cursor-theme", interfaceSchema, "cursor-theme", t.Cursor)
	return items
}

func greeterCommand(t Themes, opts Options) string {
	conf := actions.Quote(opts.GreeterConf)
	var steps []string
	if exists(opts.GreeterTemplate) {
		steps = append(steps, fmt.Sprintf("{ test -f %s || sudo cp %s %s; }", conf, actions.Quote(opts.GreeterTemplate), conf))
	}
	set := func(key, value string) {
		if value != "" {
			steps = append(steps, fmt.Sprintf("sudo crudini --set %s Greeter %s %s", conf, key, actions.Quote(value)))
		}
	}
	set("theme-name", t.GTK)
	set("icon-theme-name", t.Icon)
	set("cursor-theme-name", t.Cursor)
	return strings.Join(steps, " && ")
}

func writeSnapshot(t Themes, opts Options) error {
	base := ""
	if opts.DconfBase != "" {
		data, err := os.ReadFile(opts.DconfBase)
		switch {
		case err == nil:
			base = string(data)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("read dconf base: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(opts.DconfOut), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(opts.DconfOut, []byte(MergeDconf(base, t)), 0o644); err != nil {
		return fmt.Errorf("write dconf snapshot: %w", err)
	}
	return nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
