package actions

import (
	"fmt"
	"strings"

	"github.com/atomikpanda/mintyforge/internal/config"
)

// isGlob reports whether pattern uses dpkg glob characters.
func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// packageCommands returns the apt commands for pattern. A glob pattern is
// removed by purging every installed package that matches it.
func packageCommands(pattern string) config.Commands {
	install := fmt.Sprintf("sudo apt-get install -y %s", Quote(pattern))

	remove := fmt.Sprintf("sudo apt-get purge -y %s", Quote(pattern))
	if isGlob(pattern) {
		remove = fmt.Sprintf(
			`dpkg-query -W -f='${db:Status-Abbrev} ${Package}\n' %s 2>/dev/null | awk '$1 == "ii" {print $2}' | xargs -r sudo apt-get purge -y`,
			Quote(pattern))
	}
	return config.Commands{Install: install, Remove: remove}
}
