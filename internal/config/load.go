package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/logging"
)

//go:embed embedded/*.json
var embedded embed.FS

// Batch names.
const (
	BatchAptInstall    = "apt-install"
	BatchAptRemove     = "apt-remove"
	BatchFlatpak       = "flatpak"
	BatchExternal      = "external"
	BatchThemesGTK     = "themes-gtk"
	BatchThemesIcons   = "themes-icons"
	BatchThemesCursors = "themes-cursors"
	BatchSettings      = "settings"
	BatchExtras        = "extras"
	BatchSession       = "session"
	BatchCleanup       = "cleanup"
)

// Layout tells the loader where theme kinds are installed to and where their
// sources are cloned.
type Layout struct {
	ThemesDir  string
	IconsDir   string
	CursorsDir string
	SourcesDir string
}

func (l Layout) dirFor(k Kind) string {
	switch k {
	case KindThemeIcon:
		return l.IconsDir
	case KindThemeCursor:
		return l.CursorsDir
	default:
		return l.ThemesDir
	}
}

// source maps one config file to one batch.
type source struct {
	file     string // base name without extension
	batch    string
	title    string
	mode     Mode
	hidden   bool
	embedded bool // ship a default, overridable from the config dir
	parse    func(data []byte, l Layout) ([]Item, error)
}

var sources = []source{
	{file: "install", batch: BatchAptInstall, title: "Install APT packages", mode: ModeInstall, parse: parsePackages(KindPackage)},
	{file: "remove", batch: BatchAptRemove, title: "Remove unwanted APT packages", mode: ModeRemove, parse: parsePackages(KindPackageRemoval)},
	{file: "flatpak", batch: BatchFlatpak, title: "Install Flatpak applications", mode: ModeInstall, parse: parseFlatpaks},
	{file: "external_packages", batch: BatchExternal, title: "Install external software", mode: ModeInstall, parse: parseExternal},
	{file: "themes_gtk", batch: BatchThemesGTK, title: "Install GTK themes", mode: ModeInstall, parse: parseThemes(KindThemeGTK)},
	{file: "themes_icons", batch: BatchThemesIcons, title: "Install icon themes", mode: ModeInstall, parse: parseThemes(KindThemeIcon)},
	{file: "themes_cursors", batch: BatchThemesCursors, title: "Install cursor themes", mode: ModeInstall, parse: parseThemes(KindThemeCursor)},
	{file: "settings", batch: BatchSettings, title: "Apply desktop settings", mode: ModeInstall, parse: parseSettings},
	{file: "extras", batch: BatchExtras, title: "Drivers, Distroscript and system update", mode: ModeInstall, embedded: true, parse: parseExternal},
	{file: "session", batch: BatchSession, title: "Keep the session awake", mode: ModeInstall, hidden: true, embedded: true, parse: parseSettings},
	{file: "cleanup", batch: BatchCleanup, title: "Remove unused dependencies", mode: ModeInstall, hidden: true, embedded: true, parse: parseExternal},
}

var extensions = []string{".json", ".yaml", ".yml"}

// LoadDir reads every known config file in dir and returns the batches in
// menu order. Missing files are skipped; embedded batches fall back to their
// built-in content. Every item is validated here and nowhere else.
func LoadDir(dir string, l Layout) (Config, error) {
	logger := logging.GetLogger("config")

	var cfg Config
	for _, src := range sources {
		data, path, err := readSource(dir, src)
		if err != nil {
			return nil, err
		}
		if data == nil {
			logger.Debug().Str("batch", src.batch).Str("dir", dir).Msg("No config file, batch skipped")
			continue
		}

		items, err := src.parse(data, l)
		if err != nil {
			return nil, ferrors.Wrapf(err, ferrors.ErrConfigLoad, "parse %s", path)
		}
		for _, it := range items {
			if err := it.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}

		logger.Debug().Str("batch", src.batch).Str("path", path).Int("items", len(items)).Msg("Loaded batch")
		cfg = append(cfg, Batch{
			Name:   src.batch,
			Title:  src.title,
			Mode:   src.mode,
			Hidden: src.hidden,
			Items:  items,
		})
	}
	return cfg, nil
}

// readSource returns the file content for src, preferring the config dir over
// the embedded default. A nil slice means no source exists.
func readSource(dir string, src source) ([]byte, string, error) {
	for _, ext := range extensions {
		path := filepath.Join(dir, src.file+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, path, ferrors.Wrapf(err, ferrors.ErrConfigLoad, "read %s", path)
		}
	}
	if src.embedded {
		path := "embedded/" + src.file + ".json"
		data, err := embedded.ReadFile(path)
		if err != nil {
			return nil, path, ferrors.Wrapf(err, ferrors.ErrConfigLoad, "read built-in %s", path)
		}
		return data, "built-in " + src.file + ".json", nil
	}
	return nil, "", nil
}

// File schemas. JSON is valid YAML, so yaml.v3 decodes both.

type packageEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Cmd         string `yaml:"cmd"`
	Always      bool   `yaml:"always"`
}

type flatpakEntry struct {
	App         string `yaml:"app"`
	Source      string `yaml:"source"`
	Description string `yaml:"description"`
}

type themeEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	NameToUse   string `yaml:"name_to_use"`
	CmdUser     string `yaml:"cmd_user"`
	CmdRoot     string `yaml:"cmd_root"`
}

type settingEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Schema      string `yaml:"schema"`
	Key         string `yaml:"key"`
	Value       any    `yaml:"value"`
}

func parsePackages(kind Kind) func([]byte, Layout) ([]Item, error) {
	return func(data []byte, _ Layout) ([]Item, error) {
		var f struct {
			Packages []packageEntry `yaml:"packages"`
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		items := make([]Item, 0, len(f.Packages))
		for _, p := range f.Packages {
			items = append(items, Item{
				Name:        p.Name,
				Kind:        kind,
				Description: p.Description,
				Spec:        PackageSpec{Pattern: p.Name},
			})
		}
		return items, nil
	}
}

func parseFlatpaks(data []byte, _ Layout) ([]Item, error) {
	var f struct {
		Flatpaks []flatpakEntry `yaml:"flatpaks"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(f.Flatpaks))
	for _, p := range f.Flatpaks {
		remote := p.Source
		if remote == "" {
			remote = "flathub"
		}
		items = append(items, Item{
			Name:        p.App,
			Kind:        KindFlatpak,
			Description: p.Description,
			Spec:        FlatpakSpec{AppID: p.App, Remote: remote},
		})
	}
	return items, nil
}

func parseExternal(data []byte, _ Layout) ([]Item, error) {
	var f struct {
		Packages []packageEntry `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(f.Packages))
	for _, p := range f.Packages {
		items = append(items, Item{
			Name:        p.Name,
			Kind:        KindExternal,
			Description: p.Description,
			Spec:        ExternalSpec{Cmd: p.Cmd, Always: p.Always},
		})
	}
	return items, nil
}

func parseThemes(kind Kind) func([]byte, Layout) ([]Item, error) {
	return func(data []byte, l Layout) ([]Item, error) {
		var f struct {
			Themes []themeEntry `yaml:"themes"`
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		items := make([]Item, 0, len(f.Themes))
		for _, th := range f.Themes {
			nameToUse := th.NameToUse
			if nameToUse == "" {
				nameToUse = th.Name
			}
			items = append(items, Item{
				Name:        th.Name,
				Kind:        kind,
				Description: th.Description,
				Spec: ThemeSpec{
					URL:       th.URL,
					NameToUse: nameToUse,
					Dest:      filepath.Join(l.dirFor(kind), nameToUse),
					Source:    filepath.Join(l.SourcesDir, string(kind), th.Name),
					UserCmd:   th.CmdUser,
					RootCmd:   th.CmdRoot,
				},
			})
		}
		return items, nil
	}
}

func parseSettings(data []byte, _ Layout) ([]Item, error) {
	var f struct {
		Settings []settingEntry `yaml:"settings"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(f.Settings))
	for _, s := range f.Settings {
		name := s.Name
		if name == "" {
			name = s.Schema + "." + s.Key
		}
		value := ""
		if s.Value != nil {
			value = fmt.Sprint(s.Value)
		}
		items = append(items, Item{
			Name:        name,
			Kind:        KindSetting,
			Description: s.Description,
			Spec:        SettingSpec{Schema: s.Schema, Key: s.Key, Value: value},
		})
	}
	return items, nil
}
