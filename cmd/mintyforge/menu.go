package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/atomikpanda/mintyforge/internal/color"
	"github.com/atomikpanda/mintyforge/internal/config"
	"github.com/atomikpanda/mintyforge/internal/logging"
	"github.com/atomikpanda/mintyforge/internal/report"
)

// Menu entries that are not batches.
const (
	menuThemes  = "@themes"
	menuHistory = "@history"
	menuQuit    = "@quit"
)

// Per-batch menu actions.
const (
	actApply  = "apply"
	actPick   = "pick"
	actRemove = "remove"
	actPlan   = "plan"
	actBack   = "back"
)

func ask(ctx context.Context, fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx)
}

// runMenu is the interactive dispatcher: preflight once, then loop over the
// top-level menu until the user quits.
func (a *app) runMenu(ctx context.Context) error {
	logger := logging.GetLogger("menu")

	if err := a.preflight(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		proceed := false
		if err := ask(ctx, huh.NewConfirm().
			Title("Preflight failed").
			Description(err.Error()+"\nContinue anyway?").
			Value(&proceed)); err != nil || !proceed {
			return err
		}
	}

	for {
		choice := menuQuit
		if err := ask(ctx, huh.NewSelect[string]().
			Title("mintyforge").
			Description("What should be set up?").
			Options(a.topOptions()...).
			Value(&choice)); err != nil {
			return quitOnAbort(err)
		}

		var err error
		switch choice {
		case menuQuit:
			return nil
		case menuThemes:
			err = a.themeMenu(ctx)
		case menuHistory:
			err = a.historyMenu()
		default:
			err = a.batchMenu(ctx, *a.cfg.Batch(choice))
		}

		switch {
		case err == nil, errors.Is(err, errItemsFailed):
			// The summary has been shown; back to the menu.
		case errors.Is(err, huh.ErrUserAborted):
		case ctx.Err() != nil:
			return err
		default:
			logger.Error().Err(err).Str("choice", choice).Msg("Menu action failed")
			fmt.Fprintln(a.out, color.BoldRed("Error: ")+err.Error())
		}
		fmt.Fprintln(a.out)
	}
}

func quitOnAbort(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	return err
}

func (a *app) topOptions() []huh.Option[string] {
	var opts []huh.Option[string]
	for _, b := range a.cfg.Visible() {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%d)", b.Title, len(b.Items)), b.Name))
	}
	if a.hasThemes() {
		opts = append(opts, huh.NewOption("Apply themes to the desktop", menuThemes))
	}
	return append(opts,
		huh.NewOption("Show recent runs", menuHistory),
		huh.NewOption("Quit", menuQuit),
	)
}

func (a *app) hasThemes() bool {
	for _, name := range []string{config.BatchThemesGTK, config.BatchThemesIcons, config.BatchThemesCursors} {
		if b := a.cfg.Batch(name); b != nil && len(b.Items) > 0 {
			return true
		}
	}
	return false
}

func (a *app) batchMenu(ctx context.Context, b config.Batch) error {
	verb := "Install"
	if b.Mode == config.ModeRemove {
		verb = "Remove"
	}
	opts := []huh.Option[string]{
		huh.NewOption(verb+" all", actApply),
		huh.NewOption(verb+" selected items", actPick),
		huh.NewOption("Show plan", actPlan),
	}
	if b.Mode == config.ModeInstall && removable(b) {
		opts = append(opts, huh.NewOption("Remove all", actRemove))
	}
	opts = append(opts, huh.NewOption("Back", actBack))

	act := actBack
	if err := ask(ctx, huh.NewSelect[string]().Title(b.Title).Options(opts...).Value(&act)); err != nil {
		return err
	}

	mode := b.Mode
	switch act {
	case actBack:
		return nil
	case actPlan:
		acts, err := a.runner.Preview(ctx, b, mode)
		if err != nil {
			return err
		}
		report.Plan(a.out, b.Name, acts)
		return nil
	case actRemove:
		mode = config.ModeRemove
	case actPick:
		var picked []string
		items := make([]huh.Option[string], 0, len(b.Items))
		for _, it := range b.Items {
			label := it.Name
			if it.Description != "" {
				label += " - " + it.Description
			}
			items = append(items, huh.NewOption(label, it.Name))
		}
		if err := ask(ctx, huh.NewMultiSelect[string]().
			Title(b.Title).
			Options(items...).
			Value(&picked)); err != nil {
			return err
		}
		if len(picked) == 0 {
			return nil
		}
		sub, err := b.Subset(picked)
		if err != nil {
			return err
		}
		b = sub
	}

	ok := true
	if err := ask(ctx, huh.NewConfirm().
		Title(fmt.Sprintf("%s %d item(s) from %s?", mode, len(b.Items), b.Name)).
		Value(&ok)); err != nil || !ok {
		return err
	}
	_, err := a.reconcile(ctx, b, mode)
	return err
}

// removable reports whether items of b can be undone by the engine.
func removable(b config.Batch) bool {
	for _, it := range b.Items {
		if it.Commands.Remove == "" {
			return false
		}
	}
	return len(b.Items) > 0
}

func (a *app) themeMenu(ctx context.Context) error {
	var c themeChoice
	var fields []huh.Field
	for _, st := range []struct {
		batch string
		title string
		value *string
	}{
		{config.BatchThemesGTK, "GTK theme", &c.GTK},
		{config.BatchThemesIcons, "Icon theme", &c.Icon},
		{config.BatchThemesCursors, "Cursor theme", &c.Cursor},
	} {
		b := a.cfg.Batch(st.batch)
		if b == nil || len(b.Items) == 0 {
			continue
		}
		opts := []huh.Option[string]{huh.NewOption("(keep current)", "")}
		for _, it := range b.Items {
			opts = append(opts, huh.NewOption(it.Name, it.Name))
		}
		fields = append(fields, huh.NewSelect[string]().Title(st.title).Options(opts...).Value(st.value))
	}
	if err := ask(ctx, fields...); err != nil {
		return err
	}
	if c == (themeChoice{}) {
		return nil
	}
	return a.applyThemes(ctx, c)
}

func (a *app) historyMenu() error {
	runs, err := a.ledger.Runs(10)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	report.Runs(a.out, newestFirst(runs), time.Now())
	return nil
}
