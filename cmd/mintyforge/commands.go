package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atomikpanda/mintyforge/internal/color"
	"github.com/atomikpanda/mintyforge/internal/config"
	"github.com/atomikpanda/mintyforge/internal/desktop"
	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/logging"
	"github.com/atomikpanda/mintyforge/internal/platform"
	"github.com/atomikpanda/mintyforge/internal/report"
)

// lookupBatch returns the named batch, optionally narrowed to only.
func (a *app) lookupBatch(name string, only []string) (config.Batch, error) {
	b := a.cfg.Batch(name)
	if b == nil {
		var names []string
		for _, c := range a.cfg {
			names = append(names, c.Name)
		}
		return config.Batch{}, ferrors.Newf(ferrors.ErrConfigInvalid, "unknown batch %q%s", name, didYouMean(name, names))
	}
	if len(only) == 0 {
		return *b, nil
	}
	for _, n := range only {
		if !contains(b.Names(), n) {
			return config.Batch{}, ferrors.Newf(ferrors.ErrConfigInvalid, "batch %q has no item %q%s", name, n, didYouMean(n, b.Names()))
		}
	}
	return b.Subset(only)
}

// newestFirst reverses runs read from the ledger in place.
func newestFirst(runs []ledger.Summary) []ledger.Summary {
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// completeBatches offers batch names for shell completion.
func completeBatches(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	a, err := newApp(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer a.close()
	var names []string
	for _, b := range a.cfg.Visible() {
		names = append(names, b.Name+"\t"+b.Title)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// --- apply / remove ------------------------------------------------------------

func applyCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "apply <batch>",
		Short: "Reconcile a batch in its default mode",
		Long: `Probes every item of the batch, plans only the missing work and runs it.
apt-remove removes its packages; every other batch installs or configures.`,
		Example: `  mintyforge apply apt-install
  mintyforge apply flatpak --only org.gimp.GIMP
  mintyforge apply apt-remove`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBatches,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			b, err := a.lookupBatch(args[0], only)
			if err != nil {
				return err
			}
			_, err = a.reconcile(cmd.Context(), b, b.Mode)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "reconcile only these items (comma separated)")
	return cmd
}

func removeCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "remove <batch>",
		Short: "Remove whatever the batch installed",
		Example: `  mintyforge remove flatpak
  mintyforge remove apt-install --only curl`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBatches,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			b, err := a.lookupBatch(args[0], only)
			if err != nil {
				return err
			}
			_, err = a.reconcile(cmd.Context(), b, config.ModeRemove)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "remove only these items (comma separated)")
	return cmd
}

// --- plan --------------------------------------------------------------------

func planCmd() *cobra.Command {
	var only []string
	var remove bool

	cmd := &cobra.Command{
		Use:               "plan <batch>",
		Short:             "Show what apply would do without changing anything",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBatches,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			b, err := a.lookupBatch(args[0], only)
			if err != nil {
				return err
			}
			mode := b.Mode
			if remove {
				mode = config.ModeRemove
			}
			acts, err := a.runner.Preview(cmd.Context(), b, mode)
			if err != nil {
				return err
			}
			report.Plan(a.out, b.Name, acts)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "plan only these items (comma separated)")
	cmd.Flags().BoolVar(&remove, "remove", false, "plan a removal instead of the batch's default mode")
	return cmd
}

// --- batches -----------------------------------------------------------------

func batchesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List the configured batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			list := a.cfg.Visible()
			if all {
				list = a.cfg
			}
			for _, b := range list {
				fmt.Fprintf(a.out, "%-16s %-8s %3d items  %s\n", color.Bold(b.Name), b.Mode, len(b.Items), color.Dim(b.Title))
			}
			fmt.Fprintf(a.out, "\nconfigs: %s\n", a.settings.Paths.Configs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include internal batches")
	return cmd
}

// --- log ---------------------------------------------------------------------

func logCmd() *cobra.Command {
	var (
		item  string
		batch string
		run   string
		limit int
		runs  bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the run ledger",
		Example: `  mintyforge log
  mintyforge log --item curl
  mintyforge log --runs --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			now := time.Now()

			if runs {
				list, err := a.ledger.Runs(limit)
				if err != nil {
					return fmt.Errorf("read ledger: %w", err)
				}
				report.Runs(a.out, newestFirst(list), now)
			} else {
				entries, err := a.ledger.Read(ledger.Filter{Run: run, Batch: batch, Item: item}, limit)
				if err != nil {
					return fmt.Errorf("read ledger: %w", err)
				}
				report.Entries(a.out, entries, now)
			}
			fmt.Fprintf(a.out, "\nledger: %s\n", a.ledger.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "filter by item name")
	cmd.Flags().StringVar(&batch, "batch", "", "filter by batch name")
	cmd.Flags().StringVar(&run, "run", "", "filter by run id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries (or runs) to show")
	cmd.Flags().BoolVar(&runs, "runs", false, "summarise whole runs instead of listing entries")
	return cmd
}

// --- preflight ---------------------------------------------------------------

func preflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check connectivity and keep the session awake during setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return a.preflight(cmd.Context())
		},
	}
}

// preflight checks that the package mirrors are reachable, then applies the
// session batch so the machine does not sleep or lock mid-run.
func (a *app) preflight(ctx context.Context) error {
	logger := logging.GetLogger("preflight")
	if goos := platform.Current(); goos != "linux" {
		logger.Warn().Str("os", goos).Msg("mintyforge targets Linux Mint; most actions will fail here")
	}
	p := a.settings.Preflight
	if err := platform.CheckConnectivity(ctx, p.Host, p.Timeout); err != nil {
		logger.Warn().Err(err).Str("host", p.Host).Msg("No internet connection")
		return fmt.Errorf("no internet connection (%s): %w", p.Host, err)
	}
	fmt.Fprintln(a.out, color.Green("Internet connection OK"))

	session := a.cfg.Batch(config.BatchSession)
	if session == nil {
		return nil
	}
	_, err := a.reconcile(ctx, *session, session.Mode)
	return err
}

// --- theme -------------------------------------------------------------------

func themeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Install and switch desktop themes",
	}

	var choice themeChoice
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Install the chosen themes and apply them to Cinnamon and the login screen",
		Example: `  mintyforge theme apply --gtk orchis --icon papirus --cursor bibata
  mintyforge theme apply --icon papirus`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return a.applyThemes(cmd.Context(), choice)
		},
	}
	apply.Flags().StringVar(&choice.GTK, "gtk", "", "item name from themes_gtk")
	apply.Flags().StringVar(&choice.Icon, "icon", "", "item name from themes_icons")
	apply.Flags().StringVar(&choice.Cursor, "cursor", "", "item name from themes_cursors")
	apply.MarkFlagsOneRequired("gtk", "icon", "cursor")

	cmd.AddCommand(apply)
	return cmd
}

// themeChoice holds theme item names, one per theme batch.
type themeChoice struct {
	GTK    string
	Icon   string
	Cursor string
}

// themeName returns the installed name of a theme item.
func themeName(item config.Item) (string, error) {
	spec, ok := item.Spec.(config.ThemeSpec)
	if !ok {
		return "", fmt.Errorf("item %q is a %s, not a theme", item.Name, item.Kind)
	}
	return spec.NameToUse, nil
}

// applyThemes installs each chosen theme, then switches the desktop to the
// ones that are in place.
func (a *app) applyThemes(ctx context.Context, c themeChoice) error {
	var (
		themes desktop.Themes
		failed bool
	)
	steps := []struct {
		batch string
		item  string
		set   *string
	}{
		{config.BatchThemesGTK, c.GTK, &themes.GTK},
		{config.BatchThemesIcons, c.Icon, &themes.Icon},
		{config.BatchThemesCursors, c.Cursor, &themes.Cursor},
	}
	for _, st := range steps {
		if st.item == "" {
			continue
		}
		b, err := a.lookupBatch(st.batch, []string{st.item})
		if err != nil {
			return err
		}
		name, err := themeName(b.Items[0])
		if err != nil {
			return err
		}
		summary, err := a.reconcile(ctx, b, config.ModeInstall)
		if errors.Is(err, errItemsFailed) {
			failed = true
			continue
		}
		if err != nil {
			return err
		}
		if summary.Failed == 0 {
			*st.set = name
		}
	}
	if themes.Empty() {
		return errItemsFailed
	}

	opts := desktop.Options{
		GreeterConf:     a.settings.Desktop.GreeterConf,
		GreeterTemplate: a.configFile("slick-greeter.conf"),
	}
	if base := a.configFile("dconf_base"); fileExists(base) {
		opts.DconfBase = base
		opts.DconfOut = stateFile(a.settings.Paths.Ledger, "dconf_snapshot")
	}
	b, err := desktop.Build(themes, opts, a.env)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	if _, err := a.reconcile(ctx, b, b.Mode); err != nil {
		return err
	}
	if failed {
		return errItemsFailed
	}
	return nil
}
