package main

import (
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/atomikpanda/mintyforge/internal/color"
)

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// formatBold returns s in bold when stdout is a colour terminal.
func formatBold(s string) string {
	if !color.Enabled || !stdoutIsTerminal() {
		return s
	}
	return pterm.Bold.Sprint(s)
}

func formatBoldUpper(s string) string {
	return formatBold(strings.ToUpper(s))
}

// initTemplateFormatting adds the formatting functions used by usageTemplate.
func initTemplateFormatting() {
	cobra.AddTemplateFuncs(template.FuncMap{
		"bold":      formatBold,
		"upper":     strings.ToUpper,
		"boldUpper": formatBoldUpper,
	})
}

const usageTemplate = `{{boldUpper "usage"}}{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if .HasExample}}

{{boldUpper "examples"}}
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

{{boldUpper "commands"}}{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{bold (rpad .Name .NamePadding)}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

{{boldUpper "flags"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

{{boldUpper "global flags"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

// suggest returns up to three candidates close to name, best match first.
func suggest(name string, candidates []string) []string {
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		// Not a subsequence of anything; fall back to plain typos.
		for i, c := range candidates {
			if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d <= 2 {
				ranks = append(ranks, fuzzy.Rank{Source: name, Target: c, Distance: d, OriginalIndex: i})
			}
		}
	}
	sort.Sort(ranks)
	var out []string
	for i := 0; i < len(ranks) && i < 3; i++ {
		out = append(out, ranks[i].Target)
	}
	return out
}

// didYouMean formats suggestions for an error message.
func didYouMean(name string, candidates []string) string {
	s := suggest(name, candidates)
	if len(s) == 0 {
		return ""
	}
	return " (did you mean " + strings.Join(s, ", ") + "?)"
}
