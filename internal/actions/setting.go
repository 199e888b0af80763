package actions

import (
	"fmt"

	"github.com/atomikpanda/mintyforge/internal/config"
)

// settingCommands writes a gsettings key. Removing a setting resets it to the
// schema default.
func settingCommands(s config.SettingSpec) config.Commands {
	return config.Commands{
		Configure: fmt.Sprintf("gsettings set %s %s %s", s.Schema, s.Key, Quote(s.Value)),
		Remove:    fmt.Sprintf("gsettings reset %s %s", s.Schema, s.Key),
	}
}
