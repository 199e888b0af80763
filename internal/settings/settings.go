// Package settings loads engine settings: where configs and logs live, the
// retry policy, and desktop paths. Values are layered as embedded defaults,
// then the user's settings.toml, then MINTYFORGE_* environment variables,
// then explicit overrides from the command line.
package settings

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/platform"
)

//go:embed embedded/defaults.toml
var defaultSettings []byte

// EnvPrefix is the prefix of environment overrides, e.g.
// MINTYFORGE_RETRY_ATTEMPTS=0 sets retry.attempts.
const EnvPrefix = "MINTYFORGE_"

const appName = "mintyforge"

type Settings struct {
	Paths     Paths     `koanf:"paths"`
	Retry     Retry     `koanf:"retry"`
	Preflight Preflight `koanf:"preflight"`
	Desktop   Desktop   `koanf:"desktop"`
}

type Paths struct {
	Configs string `koanf:"configs"`
	Ledger  string `koanf:"ledger"`
	LogFile string `koanf:"log_file"`
	Themes  string `koanf:"themes"`
	Icons   string `koanf:"icons"`
	Cursors string `koanf:"cursors"`
	Sources string `koanf:"sources"` // theme clones
}

// Retry is the executor's policy for transient failures. Attempts counts
// additional tries after the first one.
type Retry struct {
	Attempts int           `koanf:"attempts"`
	Backoff  time.Duration `koanf:"backoff"`
}

type Preflight struct {
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

type Desktop struct {
	User        string `koanf:"user"`
	GreeterConf string `koanf:"greeter_conf"`
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// DefaultPath returns the user settings file location under XDG_CONFIG_HOME.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "settings.toml")
}

// Load builds Settings. path may be empty, in which case DefaultPath is used
// if it exists. An explicitly named file that does not exist is an error.
// overrides (flat "section.key" names, usually from command-line flags) are
// applied last.
func Load(path string, overrides map[string]any) (*Settings, error) {
	xdg.Reload()
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultSettings}, toml.Parser()); err != nil {
		return nil, ferrors.Wrap(err, ferrors.ErrSettingsLoad, "load defaults")
	}

	userPath := path
	if userPath == "" {
		if _, err := os.Stat(DefaultPath()); err == nil {
			userPath = DefaultPath()
		}
	}
	if userPath != "" {
		if err := k.Load(file.Provider(userPath), toml.Parser()); err != nil {
			return nil, ferrors.Wrapf(err, ferrors.ErrSettingsLoad, "load %s", userPath)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		// Only the first underscore separates section from key:
		// PATHS_LOG_FILE -> paths.log_file.
		return strings.Replace(key, "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.ErrSettingsLoad, "load environment")
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, ferrors.Wrap(err, ferrors.ErrSettingsLoad, "apply overrides")
		}
	}

	var s Settings
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &s, unmarshalConf); err != nil {
		return nil, ferrors.Wrap(err, ferrors.ErrSettingsLoad, "decode settings")
	}

	s.postProcess()
	if s.Retry.Attempts < 0 {
		return nil, ferrors.Newf(ferrors.ErrSettingsLoad, "retry.attempts must be >= 0, got %d", s.Retry.Attempts)
	}
	return &s, nil
}

func (s *Settings) postProcess() {
	if s.Paths.Ledger == "" {
		s.Paths.Ledger = filepath.Join(xdg.StateHome, appName, "ledger.jsonl")
	}
	if s.Paths.LogFile == "" {
		s.Paths.LogFile = filepath.Join(xdg.StateHome, appName, appName+".log")
	}
	if s.Paths.Sources == "" {
		s.Paths.Sources = filepath.Join(xdg.StateHome, appName, "sources")
	}
	if s.Desktop.User == "" {
		s.Desktop.User = platform.InvokingUser()
	}
	s.Paths.Configs = platform.ExpandPath(s.Paths.Configs)
	s.Paths.Ledger = platform.ExpandPath(s.Paths.Ledger)
	s.Paths.LogFile = platform.ExpandPath(s.Paths.LogFile)
	s.Paths.Themes = platform.ExpandPath(s.Paths.Themes)
	s.Paths.Icons = platform.ExpandPath(s.Paths.Icons)
	s.Paths.Cursors = platform.ExpandPath(s.Paths.Cursors)
	s.Paths.Sources = platform.ExpandPath(s.Paths.Sources)
}
