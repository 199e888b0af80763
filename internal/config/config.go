// Package config holds the desired-state model: batches of items the engine
// reconciles, and the loader that builds them from the JSON config directory.
package config

import (
	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
)

// Kind discriminates what an item is and which Spec it carries.
type Kind string

const (
	KindPackage        Kind = "package"
	KindPackageRemoval Kind = "package-removal"
	KindFlatpak        Kind = "flatpak"
	KindThemeGTK       Kind = "theme-gtk"
	KindThemeIcon      Kind = "theme-icon"
	KindThemeCursor    Kind = "theme-cursor"
	KindExternal       Kind = "external-action"
	KindSetting        Kind = "setting"
)

// IsTheme reports whether k is one of the three theme kinds.
func (k Kind) IsTheme() bool {
	return k == KindThemeGTK || k == KindThemeIcon || k == KindThemeCursor
}

// Mode selects the direction of a reconcile pass.
type Mode string

const (
	ModeInstall Mode = "install"
	ModeRemove  Mode = "remove"
)

// Config is the ordered list of batches offered to the user.
type Config []Batch

// Batch is one named collection of items processed together. Batches are
// never merged across kinds.
type Batch struct {
	Name   string
	Title  string
	Mode   Mode
	Hidden bool // internal batches (session, cleanup) not listed in menus
	Items  []Item
}

// Item is one desired-state entry.
type Item struct {
	Name        string
	Kind        Kind
	Description string
	Spec        Spec
	Commands    Commands
}

// Commands are the resolved shell commands for each work verb. An empty
// string means the verb is not supported for the item.
type Commands struct {
	Install   string
	Remove    string
	Configure string
}

// For returns the command for verb ("install", "remove" or "configure").
func (c Commands) For(verb string) string {
	switch verb {
	case "install":
		return c.Install
	case "remove":
		return c.Remove
	case "configure":
		return c.Configure
	default:
		return ""
	}
}

// Spec is the kind-specific data needed to probe an item.
type Spec interface {
	accepts(Kind) bool
}

// PackageSpec names a dpkg package. Pattern may be a glob such as
// "transmission-*".
type PackageSpec struct {
	Pattern string
}

// FlatpakSpec names a flatpak application on a remote.
type FlatpakSpec struct {
	AppID  string
	Remote string
}

// ThemeSpec describes a theme cloned with git into the Source work directory
// and installed as Dest. UserCmd and RootCmd are optional post-clone steps run
// inside Source; Dest is what the prober checks.
type ThemeSpec struct {
	URL       string
	NameToUse string
	Dest      string
	Source    string
	UserCmd   string
	RootCmd   string
}

// ExternalSpec is an opaque one-shot action. Always disables the
// "already run" shortcut taken from ledger history.
type ExternalSpec struct {
	Cmd    string
	Always bool
}

// SettingSpec is a gsettings key and its desired value.
type SettingSpec struct {
	Schema string
	Key    string
	Value  string
}

func (PackageSpec) accepts(k Kind) bool  { return k == KindPackage || k == KindPackageRemoval }
func (FlatpakSpec) accepts(k Kind) bool  { return k == KindFlatpak }
func (ThemeSpec) accepts(k Kind) bool    { return k.IsTheme() }
func (ExternalSpec) accepts(k Kind) bool { return k == KindExternal }
func (SettingSpec) accepts(k Kind) bool  { return k == KindSetting }

// Validate checks the item's identity and that its Spec matches its Kind.
func (i Item) Validate() error {
	if i.Name == "" {
		return ferrors.New(ferrors.ErrConfigInvalid, "item has no name")
	}
	if i.Spec == nil {
		return ferrors.Newf(ferrors.ErrConfigInvalid, "item %q has no %s data", i.Name, i.Kind)
	}
	if !i.Spec.accepts(i.Kind) {
		return ferrors.Newf(ferrors.ErrConfigInvalid, "item %q: %T does not describe kind %q", i.Name, i.Spec, i.Kind)
	}
	switch s := i.Spec.(type) {
	case PackageSpec:
		if s.Pattern == "" {
			return ferrors.Newf(ferrors.ErrConfigInvalid, "package %q has an empty pattern", i.Name)
		}
	case FlatpakSpec:
		if s.AppID == "" {
			return ferrors.Newf(ferrors.ErrConfigInvalid, "flatpak %q has no app id", i.Name)
		}
	case ThemeSpec:
		if s.URL == "" || s.NameToUse == "" {
			return ferrors.Newf(ferrors.ErrConfigInvalid, "theme %q needs url and name_to_use", i.Name)
		}
	case SettingSpec:
		if s.Schema == "" || s.Key == "" {
			return ferrors.Newf(ferrors.ErrConfigInvalid, "setting %q needs schema and key", i.Name)
		}
	}
	return nil
}

// Batch returns the named batch, or nil if not found.
func (c Config) Batch(name string) *Batch {
	for i := range c {
		if c[i].Name == name {
			return &c[i]
		}
	}
	return nil
}

// Visible returns the batches meant for menus and listings.
func (c Config) Visible() Config {
	var out Config
	for _, b := range c {
		if !b.Hidden {
			out = append(out, b)
		}
	}
	return out
}

// Subset returns a copy of b holding only the named items, in the batch's
// declared order. Every name must exist in the batch.
func (b Batch) Subset(names []string) (Batch, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = false
	}
	out := b
	out.Items = nil
	for _, it := range b.Items {
		if _, ok := want[it.Name]; ok {
			out.Items = append(out.Items, it)
			want[it.Name] = true
		}
	}
	for _, n := range names {
		if !want[n] {
			return Batch{}, ferrors.Newf(ferrors.ErrConfigInvalid, "batch %q has no item %q", b.Name, n)
		}
	}
	return out, nil
}

// Names returns the item names of b in declared order.
func (b Batch) Names() []string {
	names := make([]string, len(b.Items))
	for i, it := range b.Items {
		names[i] = it.Name
	}
	return names
}
