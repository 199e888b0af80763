package actions

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atomikpanda/mintyforge/internal/config"
)

// themeCommands clones the theme into its Source work directory, hands it to
// user and runs the optional post-clone steps from there. Without steps the
// clone is copied to Dest. Either way the install fails unless Dest exists
// afterwards, so a half-done install never reads as present.
func themeCommands(s config.ThemeSpec, user string) (config.Commands, error) {
	if s.Source == "" || s.Dest == "" {
		return config.Commands{}, fmt.Errorf("theme %q has no source or destination directory", s.NameToUse)
	}
	src, dest := Quote(s.Source), Quote(s.Dest)
	steps := []string{
		fmt.Sprintf("rm -rf %s", src),
		fmt.Sprintf("mkdir -p %s", Quote(filepath.Dir(s.Source))),
		fmt.Sprintf("git clone --depth=1 %s %s", Quote(s.URL), src),
	}
	if user != "" {
		steps = append(steps, fmt.Sprintf("sudo chown -R %s %s", Quote(user+":"+user), src))
	}
	if s.UserCmd != "" {
		steps = append(steps, fmt.Sprintf("(cd %s && bash -c %s)", src, Quote(s.UserCmd)))
	}
	if s.RootCmd != "" {
		steps = append(steps, fmt.Sprintf("(cd %s && sudo bash -c %s)", src, Quote(s.RootCmd)))
	}
	if s.UserCmd == "" && s.RootCmd == "" {
		steps = append(steps,
			fmt.Sprintf("mkdir -p %s", Quote(filepath.Dir(s.Dest))),
			fmt.Sprintf("rm -rf %s", dest),
			fmt.Sprintf("cp -r %s %s", src, dest),
			fmt.Sprintf("rm -rf %s", Quote(filepath.Join(s.Dest, ".git"))),
		)
	}
	steps = append(steps, fmt.Sprintf("{ test -d %s || { echo %s >&2; exit 1; }; }",
		dest, Quote(s.Dest+" was not created by the install steps")))
	return config.Commands{
		Install: strings.Join(steps, " && "),
		Remove:  fmt.Sprintf("rm -rf %s %s", dest, src),
	}, nil
}
