package desktop

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	interfacePath = "org/cinnamon/desktop/interface"
	wmPath        = "org/cinnamon/desktop/wm/preferences"
)

// MergeDconf sets the chosen themes in a "dconf dump" style document. Keys
// already present are replaced in place; missing sections and keys are
// appended. Everything else in base is kept as is.
func MergeDconf(base string, t Themes) string {
	want := map[string]map[string]string{
		interfacePath: {},
		wmPath:        {},
	}
	if t.GTK != "" {
		want[interfacePath]["gtk-theme"] = t.GTK
		want[wmPath]["theme"] = t.GTK
	}
	if t.Icon != "" {
		want[interfacePath]["icon-theme"] = t.Icon
	}
	if t.Cursor != "" {
		want[interfacePath]["cursor-theme"] = t.Cursor
	}

	var (
		out     []string
		section string
		written = map[string]map[string]bool{interfacePath: {}, wmPath: {}}
		seen    = map[string]bool{}
	)
	// flush adds the keys of the current section that base did not contain,
	// ahead of any blank lines separating it from the next section.
	flush := func() {
		keys, ok := want[section]
		if !ok {
			return
		}
		at := len(out)
		for at > 0 && out[at-1] == "" {
			at--
		}
		var missing []string
		for _, k := range slices.Sorted(maps.Keys(keys)) {
			if !written[section][k] {
				missing = append(missing, fmt.Sprintf("%s=%s", k, gvariantString(keys[k])))
				written[section][k] = true
			}
		}
		out = slices.Insert(out, at, missing...)
	}

	for _, line := range strings.Split(strings.TrimRight(base, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			flush()
			section = strings.Trim(trimmed, "[]")
			seen[section] = true
			out = append(out, trimmed)
			continue
		}
		if key, _, ok := strings.Cut(trimmed, "="); ok {
			key = strings.TrimSpace(key)
			if v, managed := want[section][key]; managed {
				out = append(out, fmt.Sprintf("%s=%s", key, gvariantString(v)))
				written[section][key] = true
				continue
			}
		}
		if line == "" && len(out) == 0 {
			continue
		}
		out = append(out, line)
	}
	flush()

	for _, path := range []string{interfacePath, wmPath} {
		if seen[path] || len(want[path]) == 0 {
			continue
		}
		if len(out) > 0 && out[len(out)-1] != "" {
			out = append(out, "")
		}
		out = append(out, "["+path+"]")
		section = path
		flush()
	}
	return strings.Join(out, "\n") + "\n"
}

func gvariantString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
