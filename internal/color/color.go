// Package color provides terminal colour helpers for user-facing output.
// All functions return their input unchanged when Enabled is false, so
// callers only need to call Init once at program start.
package color

import (
	"os"

	"github.com/gookit/color"
	"github.com/mattn/go-isatty"
)

// Enabled is true when colour output is wanted and supported.
var Enabled bool

// Init decides whether stdout gets colour. Colour is off when:
//   - NO_COLOR is set (https://no-color.org)
//   - TERM=dumb
//   - stdout is not a terminal
func Init() {
	Enabled = false
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		color.Disable()
		return
	}
	fd := os.Stdout.Fd()
	Enabled = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if !Enabled {
		color.Disable()
	}
}

// Disable turns colour off, e.g. for --no-color.
func Disable() {
	Enabled = false
	color.Disable()
}

func render(st color.Style, s string) string {
	if !Enabled || s == "" {
		return s
	}
	return st.Sprint(s)
}

func Bold(s string) string       { return render(color.New(color.OpBold), s) }
func Dim(s string) string        { return render(color.New(color.OpFuzzy), s) }
func Red(s string) string        { return render(color.New(color.FgRed), s) }
func Green(s string) string      { return render(color.New(color.FgGreen), s) }
func Yellow(s string) string     { return render(color.New(color.FgYellow), s) }
func Cyan(s string) string       { return render(color.New(color.FgCyan), s) }
func BoldRed(s string) string    { return render(color.New(color.FgRed, color.OpBold), s) }
func BoldGreen(s string) string  { return render(color.New(color.FgGreen, color.OpBold), s) }
func BoldYellow(s string) string { return render(color.New(color.FgYellow, color.OpBold), s) }
func BoldCyan(s string) string   { return render(color.New(color.FgCyan, color.OpBold), s) }
