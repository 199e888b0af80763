package actions

import (
	"fmt"

	"github.com/atomikpanda/mintyforge/internal/config"
)

func flatpakCommands(s config.FlatpakSpec) config.Commands {
	return config.Commands{
		Install: fmt.Sprintf("flatpak install -y --noninteractive %s %s", Quote(s.Remote), Quote(s.AppID)),
		Remove:  fmt.Sprintf("flatpak uninstall -y --noninteractive %s", Quote(s.AppID)),
	}
}
