// Package probe observes whether desired items are already in place.
//
// Probing never fails: anything the prober cannot determine is reported as
// Unknown and left to the planner.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atomikpanda/mintyforge/internal/config"
	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/logging"
	"github.com/atomikpanda/mintyforge/internal/shell"
)

// State is the observed state of one item.
type State string

const (
	Present State = "present"
	Absent  State = "absent"
	Unknown State = "unknown"
)

// dpkgFormat prints the abbreviated status ("ii " for installed) and name.
const dpkgFormat = "-f=${db:Status-Abbrev}\t${Package}\n"

// Prober queries the host for item state.
type Prober struct {
	Query shell.Querier
}

// New returns a Prober backed by q.
func New(q shell.Querier) *Prober {
	return &Prober{Query: q}
}

// Probe returns the observed state of item.
func (p *Prober) Probe(ctx context.Context, item config.Item) State {
	logger := logging.GetLogger("probe").With().Str("item", item.Name).Str("kind", string(item.Kind)).Logger()

	var (
		state  State
		reason error
	)
	switch s := item.Spec.(type) {
	case config.PackageSpec:
		state, reason = p.probePackage(ctx, s.Pattern)
	case config.FlatpakSpec:
		state, reason = p.probeFlatpak(ctx, s.AppID)
	case config.ThemeSpec:
		state, reason = probePath(s.Dest)
	case config.SettingSpec:
		state, reason = p.probeSetting(ctx, s)
	case config.ExternalSpec:
		state, reason = Unknown, errors.New("external actions cannot be probed")
	default:
		state, reason = Unknown, errors.New("no probe for this kind")
	}

	if state == Unknown {
		indeterminate(logger, reason)
	} else {
		logger.Debug().Str("state", string(state)).Msg("Probed")
	}
	return state
}

func indeterminate(logger zerolog.Logger, reason error) {
	err := ferrors.Wrap(reason, ferrors.ErrProbeIndeterminate, "state unknown")
	logger.Debug().Err(err).Msg("Probe indeterminate")
}

// probePackage asks dpkg for pattern. Globs are present when any match is
// installed.
func (p *Prober) probePackage(ctx context.Context, pattern string) (State, error) {
	out, code, err := p.Query.Query(ctx, "dpkg-query", "-W", dpkgFormat, pattern)
	if err != nil {
		return Unknown, err
	}
	switch code {
	case 0:
		if anyInstalled(out) {
			return Present, nil
		}
		return Absent, nil
	case 1:
		// no package matches the pattern
		return Absent, nil
	default:
		return Unknown, ferrors.Newf(ferrors.ErrProbeIndeterminate, "dpkg-query exited %d", code)
	}
}

func anyInstalled(out []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "ii") {
			return true
		}
	}
	return false
}

func (p *Prober) probeFlatpak(ctx context.Context, appID string) (State, error) {
	out, code, err := p.Query.Query(ctx, "flatpak", "list", "--columns=application")
	if err != nil {
		return Unknown, err
	}
	if code != 0 {
		return Unknown, ferrors.Newf(ferrors.ErrProbeIndeterminate, "flatpak list exited %d", code)
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == appID {
			return Present, nil
		}
	}
	return Absent, nil
}

func probePath(path string) (State, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return Present, nil
	case errors.Is(err, fs.ErrNotExist):
		return Absent, nil
	default:
		return Unknown, err
	}
}

func (p *Prober) probeSetting(ctx context.Context, s config.SettingSpec) (State, error) {
	out, code, err := p.Query.Query(ctx, "gsettings", "get", s.Schema, s.Key)
	if err != nil {
		return Unknown, err
	}
	if code != 0 {
		return Unknown, ferrors.Newf(ferrors.ErrProbeIndeterminate, "gsettings get exited %d", code)
	}
	if NormalizeGVariant(string(out)) == NormalizeGVariant(s.Value) {
		return Present, nil
	}
	return Absent, nil
}

// NormalizeGVariant reduces a gsettings value to a comparable form: it drops
// a leading type annotation such as "uint32" and the quotes around strings.
func NormalizeGVariant(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ' '); i > 0 && isTypeAnnotation(v[:i]) {
		v = strings.TrimSpace(v[i+1:])
	}
	if len(v) >= 2 {
		if (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"') {
			v = v[1 : len(v)-1]
		}
	}
	return v
}

func isTypeAnnotation(s string) bool {
	switch s {
	case "byte", "int16", "uint16", "int32", "uint32", "int64", "uint64", "double", "@as", "@s":
		return true
	}
	return false
}
