package executor

import (
	"strings"

	"github.com/atomikpanda/mintyforge/internal/config"
	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/plan"
	"github.com/atomikpanda/mintyforge/internal/shell"
)

// Output fragments, matched case-insensitively.
var (
	satisfiedInstall = []string{
		"is already installed",
		"is already the newest version",
		"already installed", // flatpak
	}
	satisfiedRemove = []string{
		"is not installed",
		"not installed, so not removed",
		"unable to locate package",
		"not installed", // flatpak
	}
	transient = []string{
		"temporary failure resolving",
		"could not resolve",
		"couldn't resolve host",
		"failed to fetch",
		"connection timed out",
		"connection refused",
		"connection reset",
		"network is unreachable",
		"could not connect",
		"unable to connect",
		"could not get lock",
		"unable to acquire the dpkg frontend lock",
		"is another process using it",
		"while fetching",
	}
)

// Classify maps a command outcome to an error code. An empty code means the
// command succeeded. Already-satisfied output is only trusted from the apt
// and flatpak commands of kind; for anything else the exit code decides.
func Classify(kind config.Kind, verb plan.Verb, res shell.Result) ferrors.ErrorCode {
	out := strings.ToLower(res.Output)

	if reportsSatisfied(kind) {
		markers := satisfiedInstall
		if verb == plan.VerbRemove {
			markers = satisfiedRemove
		}
		if findMarker(out, markers) != "" {
			return ferrors.ErrAlreadySatisfied
		}
	}
	if res.ExitCode == 0 {
		return ""
	}
	if findMarker(out, transient) != "" {
		return ferrors.ErrTransientExecution
	}
	return ferrors.ErrPermanentExecution
}

func reportsSatisfied(kind config.Kind) bool {
	switch kind {
	case config.KindPackage, config.KindPackageRemoval, config.KindFlatpak:
		return true
	}
	return false
}

// findMarker returns the first marker found in out.
func findMarker(out string, markers []string) string {
	for _, m := range markers {
		if strings.Contains(out, m) {
			return m
		}
	}
	return ""
}

// lastLine returns the last non-empty line of output, for result messages.
func lastLine(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
