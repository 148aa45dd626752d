package migration

import (
	"strings"

	"github.com/pkg/errors"
)

type (
	ActionKind uint8

	// Action is what the engine is asked to do, resolved once from
	// the caller's input
	Action struct {
		kind ActionKind
		name string
	}

	Direction string
)

const (
	UpKind ActionKind = iota + 1
	DownKind
	ResetKind
	RepeatKind
	NamedKind
)

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func Up() Action     { return Action{kind: UpKind} }
func Down() Action   { return Action{kind: DownKind} }
func Reset() Action  { return Action{kind: ResetKind} }
func Repeat() Action { return Action{kind: RepeatKind} }

func Named(name string) Action {
	return Action{kind: NamedKind, name: name}
}

// ParseAction resolves an action name or one of the legacy numeric codes,
// any other non version string is a named migration
func ParseAction(s string) (Action, error) {
	switch strings.TrimSpace(s) {
	case "":
		return Action{}, errors.Wrap(ErrInvalidAction, "action is empty")
	case "up", "1":
		return Up(), nil
	case "down", "-1":
		return Down(), nil
	case "reset", "0":
		return Reset(), nil
	case "repeat", "2":
		return Repeat(), nil
	}

	if IsVersion(s) {
		return Action{}, errors.Wrapf(ErrInvalidAction, "version [%s] cannot be used as a named migration", s)
	}

	return Named(s), nil
}

func (a Action) Kind() ActionKind {
	return a.kind
}

// Name of the named migration, empty for the other kinds
func (a Action) Name() string {
	return a.name
}

func (a Action) NeedsTarget() bool {
	return a.kind == UpKind || a.kind == DownKind || a.kind == RepeatKind
}

func (a Action) String() string {
	switch a.kind {
	case UpKind:
		return "up"
	case DownKind:
		return "down"
	case ResetKind:
		return "reset"
	case RepeatKind:
		return "repeat"
	case NamedKind:
		return a.name
	default:
		return "unknown"
	}
}
