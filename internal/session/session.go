// Package session holds the mutable state of one wizard run: the selected
// experiment, the current field values, and the navigation stack that governs
// forward/back traversal. A session is exclusively owned by the flow that
// created it; nothing here is safe for concurrent use and nothing needs to be.
package session

import (
	"errors"
	"fmt"

	"faultctl/internal/catalog"
)

// ScreenKind tags the wizard step a screen represents.
type ScreenKind int

const (
	// ScreenSelecting is the catalog picker. It is the only screen that may
	// exist without an owning session.
	ScreenSelecting ScreenKind = iota
	// ScreenEditing is the parameter editor; FieldKey names the selected field.
	ScreenEditing
	// ScreenConfirming shows the rendered manifest and the disruption warning.
	ScreenConfirming
	// ScreenRunning streams execution events.
	ScreenRunning
	// ScreenReporting shows the assembled report.
	ScreenReporting
)

func (k ScreenKind) String() string {
	switch k {
	case ScreenSelecting:
		return "selecting"
	case ScreenEditing:
		return "editing"
	case ScreenConfirming:
		return "confirming"
	case ScreenRunning:
		return "running"
	case ScreenReporting:
		return "reporting"
	default:
		return fmt.Sprintf("screen(%d)", int(k))
	}
}

// Screen is one entry of the navigation stack.
type Screen struct {
	Kind     ScreenKind
	FieldKey string // set only for ScreenEditing
}

// ErrNavigationLocked rejects back-navigation while an execution is in
// flight. The stack is left untouched; the operation simply fails.
var ErrNavigationLocked = errors.New("session: navigation locked while execution is active")

// Controller is the abstract command surface the UI layer drives. Keyboard
// handling maps raw keys onto these operations; the core never sees key codes.
type Controller interface {
	Select(delta int)
	Activate()
	Back()
	Quit()
}

// State is one operator's in-progress run through the wizard.
type State struct {
	Experiment *catalog.Experiment
	values     map[string]string
	stack      []Screen
	locked     bool
}

// New creates a session for the selected experiment, seeding field values
// from the schema defaults and the stack with the editing screen.
func New(exp *catalog.Experiment) *State {
	initial := Screen{Kind: ScreenEditing}
	if len(exp.Fields) > 0 {
		initial.FieldKey = exp.Fields[0].Key
	}
	return &State{
		Experiment: exp,
		values:     exp.DefaultValues(),
		stack:      []Screen{initial},
	}
}

// Values returns the current field values. Callers must treat the map as
// read-only; edits go through SetValues with an editor-produced copy.
func (s *State) Values() map[string]string {
	return s.values
}

// ValuesSnapshot returns an independent copy, used when a completed report
// must not observe later edits.
func (s *State) ValuesSnapshot() map[string]string {
	snapshot := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	return snapshot
}

// SetValues installs an updated value set. The keys must exactly match the
// schema; anything else is a programming error surfaced immediately.
func (s *State) SetValues(values map[string]string) error {
	if len(values) != len(s.Experiment.Fields) {
		return fmt.Errorf("session: value set has %d keys, schema has %d", len(values), len(s.Experiment.Fields))
	}
	for _, field := range s.Experiment.Fields {
		if _, ok := values[field.Key]; !ok {
			return fmt.Errorf("session: value set is missing key %s", field.Key)
		}
	}
	s.values = values
	return nil
}

// Push appends a screen, preserving every ancestor and its edit state.
func (s *State) Push(scr Screen) {
	s.stack = append(s.stack, scr)
}

// Replace atomically swaps the top screen, so the replaced intermediate step
// is not revisitable via back-navigation.
func (s *State) Replace(scr Screen) {
	if len(s.stack) == 0 {
		s.stack = []Screen{scr}
		return
	}
	s.stack[len(s.stack)-1] = scr
}

// Pop removes the top screen and surfaces the one beneath it, with its data
// intact. Popping the last screen is a no-op that reports false: the caller
// should collapse back to the catalog and discard the session. While an
// execution is active the pop is rejected and the stack left unchanged.
func (s *State) Pop() (bool, error) {
	if s.locked {
		return false, ErrNavigationLocked
	}
	if len(s.stack) <= 1 {
		return false, nil
	}
	s.stack = s.stack[:len(s.stack)-1]
	return true, nil
}

// Top returns the current screen. The stack is never empty while the session
// is alive.
func (s *State) Top() Screen {
	return s.stack[len(s.stack)-1]
}

// Depth reports the stack size.
func (s *State) Depth() int {
	return len(s.stack)
}

// Lock freezes back-navigation for the duration of an execution. There is no
// mid-flight abort; the only way forward is Complete.
func (s *State) Lock() {
	s.locked = true
}

// Unlock re-enables back-navigation once the pipeline has settled.
func (s *State) Unlock() {
	s.locked = false
}

// Locked reports whether back-navigation is currently rejected.
func (s *State) Locked() bool {
	return s.locked
}
