package template

import (
	"testing"

	"github.com/atomikpanda/mintyforge/internal/config"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		params map[string]any
		want   string
	}{
		{"simple", "chown {{ .User }}", map[string]any{"User": "alice"}, "chown alice"},
		{"multiple", "{{ .a }} and {{ .b }}", map[string]any{"a": "x", "b": "y"}, "x and y"},
		{"no template", "plain text", map[string]any{"x": "y"}, "plain text"},
		{"shell braces untouched", "echo ${HOME}", nil, "echo ${HOME}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.input, tt.params)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRenderMissingKey(t *testing.T) {
	_, err := Render("cp x {{ .Missing }}", map[string]any{"User": "alice"})
	if err == nil {
		t.Error("expected error for missing key")
	}
}

func TestRenderInvalidTemplate(t *testing.T) {
	_, err := Render("{{ .bad", nil)
	if err == nil {
		t.Error("expected error for invalid template")
	}
}

func TestParams(t *testing.T) {
	item := config.Item{Name: "papirus", Kind: config.KindThemeIcon, Spec: config.ThemeSpec{Dest: "/home/u/.icons/Papirus", Source: "/s/papirus"}}
	base := map[string]any{"User": "u"}

	p := Params(item, base)
	if p["Name"] != "papirus" || p["Dest"] != "/home/u/.icons/Papirus" || p["Source"] != "/s/papirus" || p["User"] != "u" {
		t.Errorf("Params = %v", p)
	}
	if _, ok := base["Name"]; ok {
		t.Error("Params must not modify base")
	}
}

func TestRenderItemExternal(t *testing.T) {
	item := config.Item{
		Name: "zoom",
		Kind: config.KindExternal,
		Spec: config.ExternalSpec{Cmd: "wget -O /tmp/{{ .Name }}.deb https://example.com && sudo -u {{ .User }} true", Always: true},
	}
	got, err := RenderItem(item, map[string]any{"Name": "zoom", "User": "alice"})
	if err != nil {
		t.Fatal(err)
	}
	spec := got.Spec.(config.ExternalSpec)
	if spec.Cmd != "wget -O /tmp/zoom.deb https://example.com && sudo -u alice true" {
		t.Errorf("Cmd = %q", spec.Cmd)
	}
	if !spec.Always {
		t.Error("Always lost during render")
	}
	if item.Spec.(config.ExternalSpec).Cmd == spec.Cmd {
		t.Error("RenderItem must not modify its input")
	}
}

func TestRenderItemTheme(t *testing.T) {
	item := config.Item{
		Name: "orchis",
		Kind: config.KindThemeGTK,
		Spec: config.ThemeSpec{URL: "u", NameToUse: "Orchis", Dest: "/d", UserCmd: "./install.sh -d {{ .Dest }}", RootCmd: ""},
	}
	got, err := RenderItem(item, map[string]any{"Dest": "/d"})
	if err != nil {
		t.Fatal(err)
	}
	if cmd := got.Spec.(config.ThemeSpec).UserCmd; cmd != "./install.sh -d /d" {
		t.Errorf("UserCmd = %q", cmd)
	}
}

func TestRenderItemPackageUntouched(t *testing.T) {
	item := config.Item{Name: "{{ .x }}", Kind: config.KindPackage, Spec: config.PackageSpec{Pattern: "{{ .x }}"}}
	got, err := RenderItem(item, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Spec.(config.PackageSpec).Pattern != "{{ .x }}" {
		t.Error("package specs are data and must not be rendered")
	}
}
