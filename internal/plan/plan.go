// Package plan turns desired items and their observed state into an ordered
// list of actions. Planning is pure: it performs no I/O.
package plan

import (
	"github.com/atomikpanda/mintyforge/internal/config"
	"github.com/atomikpanda/mintyforge/internal/probe"
)

// Mode is the direction of a reconcile pass.
type Mode = config.Mode

const (
	ModeInstall = config.ModeInstall
	ModeRemove  = config.ModeRemove
)

// Verb is what the executor does with an item.
type Verb string

const (
	VerbInstall   Verb = "install"
	VerbRemove    Verb = "remove"
	VerbConfigure Verb = "configure"
	VerbSkip      Verb = "skip"
)

// Skip reasons.
const (
	ReasonSatisfied  = "already satisfied"
	ReasonDuplicate  = "duplicate"
	ReasonAlreadyRun = "already run"
)

// Action pairs an item with the verb chosen for it.
type Action struct {
	Item   config.Item
	Verb   Verb
	Reason string // why a skip was planned; empty for work verbs
}

// Plan returns one action per item, in declared order. Only the first item
// with a given name is planned; later ones are skipped as duplicates.
// Unknown state is treated as absent when installing and as present when
// removing, leaving the executor to report an idempotent no-op.
func Plan(items []config.Item, observed map[string]probe.State, mode Mode) []Action {
	actions := make([]Action, 0, len(items))
	seen := make(map[string]bool, len(items))

	for _, it := range items {
		if seen[it.Name] {
			actions = append(actions, Action{Item: it, Verb: VerbSkip, Reason: ReasonDuplicate})
			continue
		}
		seen[it.Name] = true

		state, ok := observed[it.Name]
		if !ok {
			state = probe.Unknown
		}
		actions = append(actions, planItem(it, state, mode))
	}
	return actions
}

func planItem(it config.Item, state probe.State, mode Mode) Action {
	if mode == ModeRemove {
		if state == probe.Absent {
			return Action{Item: it, Verb: VerbSkip, Reason: ReasonSatisfied}
		}
		return Action{Item: it, Verb: VerbRemove}
	}

	if state == probe.Present {
		return Action{Item: it, Verb: VerbSkip, Reason: ReasonSatisfied}
	}
	return Action{Item: it, Verb: workVerb(it.Kind)}
}

func workVerb(k config.Kind) Verb {
	if k == config.KindSetting {
		return VerbConfigure
	}
	return VerbInstall
}

// Work counts the actions that will invoke a command.
func Work(actions []Action) int {
	n := 0
	for _, a := range actions {
		if a.Verb != VerbSkip {
			n++
		}
	}
	return n
}
