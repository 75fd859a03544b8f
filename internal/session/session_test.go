package session

import (
	"errors"
	"testing"

	"faultctl/internal/catalog"
)

func newTestSession(t *testing.T) *State {
	t.Helper()
	exp := catalog.Builtins()[0].Normalized()
	return New(&exp)
}

func TestNewSeedsDefaultsAndStack(t *testing.T) {
	s := newTestSession(t)
	if s.Depth() != 1 {
		t.Fatalf("expected single-screen stack, got %d", s.Depth())
	}
	if top := s.Top(); top.Kind != ScreenEditing || top.FieldKey != s.Experiment.Fields[0].Key {
		t.Fatalf("unexpected initial screen: %+v", top)
	}
	if len(s.Values()) != len(s.Experiment.Fields) {
		t.Fatalf("values must cover the schema exactly")
	}
}

func TestPushPopRestoresScreen(t *testing.T) {
	s := newTestSession(t)
	before := s.Top()
	s.Push(Screen{Kind: ScreenConfirming})
	if s.Top().Kind != ScreenConfirming {
		t.Fatalf("push did not surface new screen")
	}
	ok, err := s.Pop()
	if err != nil || !ok {
		t.Fatalf("pop: ok=%v err=%v", ok, err)
	}
	if s.Top() != before {
		t.Fatalf("pop must restore the previous screen identically: %+v != %+v", s.Top(), before)
	}
	// Inverse push restores an identical stack top.
	s.Push(Screen{Kind: ScreenConfirming})
	if _, err := s.Pop(); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if s.Top() != before {
		t.Fatalf("pop/push inverse broke the screen state")
	}
}

func TestPopOnLastScreenSignalsExit(t *testing.T) {
	s := newTestSession(t)
	ok, err := s.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if ok {
		t.Fatalf("single-element pop must be a no-op exit signal")
	}
	if s.Depth() != 1 {
		t.Fatalf("exit signal must not mutate the stack")
	}
}

func TestReplaceIsAtomic(t *testing.T) {
	s := newTestSession(t)
	s.Push(Screen{Kind: ScreenConfirming})
	s.Replace(Screen{Kind: ScreenRunning})
	if s.Depth() != 2 {
		t.Fatalf("replace must not grow the stack, depth=%d", s.Depth())
	}
	if s.Top().Kind != ScreenRunning {
		t.Fatalf("replace did not install new screen")
	}
	if _, err := s.Pop(); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if s.Top().Kind != ScreenEditing {
		t.Fatalf("replaced screen must not be revisitable, got %v", s.Top().Kind)
	}
}

func TestPopRejectedWhileLocked(t *testing.T) {
	s := newTestSession(t)
	s.Push(Screen{Kind: ScreenRunning})
	s.Lock()
	depth := s.Depth()
	values := s.ValuesSnapshot()
	ok, err := s.Pop()
	if ok || !errors.Is(err, ErrNavigationLocked) {
		t.Fatalf("expected locked rejection, ok=%v err=%v", ok, err)
	}
	if s.Depth() != depth {
		t.Fatalf("rejected pop mutated the stack")
	}
	for k, v := range values {
		if s.Values()[k] != v {
			t.Fatalf("rejected pop mutated values")
		}
	}
	s.Unlock()
	if ok, err := s.Pop(); !ok || err != nil {
		t.Fatalf("pop after unlock: ok=%v err=%v", ok, err)
	}
}

func TestSetValuesEnforcesSchemaKeys(t *testing.T) {
	s := newTestSession(t)
	bad := s.ValuesSnapshot()
	delete(bad, s.Experiment.Fields[0].Key)
	bad["extra"] = "x"
	if err := s.SetValues(bad); err == nil {
		t.Fatalf("mismatched keys must be rejected")
	}
	good := s.ValuesSnapshot()
	good[s.Experiment.Fields[0].Key] = "pod-kill"
	if err := s.SetValues(good); err != nil {
		t.Fatalf("set values: %v", err)
	}
	if s.Values()[s.Experiment.Fields[0].Key] != "pod-kill" {
		t.Fatalf("value not installed")
	}
}

func TestValuesSnapshotIsIndependent(t *testing.T) {
	s := newTestSession(t)
	snapshot := s.ValuesSnapshot()
	key := s.Experiment.Fields[0].Key
	updated := s.ValuesSnapshot()
	updated[key] = "changed"
	if err := s.SetValues(updated); err != nil {
		t.Fatalf("set values: %v", err)
	}
	if snapshot[key] == "changed" {
		t.Fatalf("snapshot observed a later edit")
	}
}
