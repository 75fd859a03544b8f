package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"faultctl/internal/config"
	"faultctl/internal/executor"
	"faultctl/internal/pipeline"
	"faultctl/internal/report"
	"faultctl/internal/session"
)

func newTestApp(t *testing.T, opts ...AppOption) *App {
	t.Helper()
	projectDir := t.TempDir()
	if err := config.InitFaultctlDir(projectDir); err != nil {
		t.Fatalf("init faultctl dir: %v", err)
	}
	base := []AppOption{WithExecutor(&executor.Simulator{Interval: time.Millisecond})}
	app, err := NewApp(projectDir, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

// press feeds one key and drains every follow-up command the app schedules,
// feeding resulting wizard messages back through Update. Component-internal
// messages (cursor blinks and the like) are dropped.
func press(t *testing.T, app *App, key string) {
	t.Helper()
	_, cmd := app.Update(keyMsg(key))
	runWizardCommands(t, app, cmd)
}

func runWizardCommands(t *testing.T, app *App, first tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{first}
	deadline := time.Now().Add(10 * time.Second)
	for len(queue) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("command pump did not settle")
		}
		cmd := queue[0]
		queue = queue[1:]
		if cmd == nil {
			continue
		}
		switch msg := cmd().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tea.QuitMsg:
			return
		case runEventMsg, summaryMsg, reportSavedMsg:
			_, next := app.Update(msg)
			queue = append(queue, next)
		}
	}
}

// commitField opens the editor on the highlighted field, replaces the buffer,
// and commits it.
func commitField(t *testing.T, app *App, value string) {
	t.Helper()
	press(t, app, "enter")
	if !app.typing {
		t.Fatalf("expected field editor to focus")
	}
	app.input.SetValue(value)
	press(t, app, "enter")
}

func TestWizardEndToEnd(t *testing.T) {
	app := newTestApp(t)

	// Pick Network Faults from the catalog.
	press(t, app, "down")
	press(t, app, "enter")
	if app.sess == nil {
		t.Fatalf("expected a session after selection")
	}
	if app.sess.Experiment.Name != "Network Faults" {
		t.Fatalf("selected %s, want Network Faults", app.sess.Experiment.Name)
	}
	top := app.sess.Top()
	if top.Kind != session.ScreenEditing || top.FieldKey != "action" {
		t.Fatalf("unexpected initial screen: %+v", top)
	}

	// Change the action, then walk to the review row and confirm.
	commitField(t, app, "loss")
	if app.typing {
		t.Fatalf("commit should close the editor: %s", app.statusMsg)
	}
	if got := app.sess.Values()["action"]; got != "loss" {
		t.Fatalf("action = %q, want loss", got)
	}
	fieldCount := len(app.sess.Experiment.Fields)
	for i := 0; i < fieldCount; i++ {
		press(t, app, "down")
	}
	press(t, app, "enter")
	if app.currentScreen().Kind != session.ScreenConfirming {
		t.Fatalf("expected confirm screen, got %s", app.currentScreen().Kind)
	}
	if !strings.Contains(app.manifestText, "action: loss") {
		t.Fatalf("manifest missing edited action:\n%s", app.manifestText)
	}

	// Arm, then launch. The fast simulator runs to completion inside press.
	press(t, app, "enter")
	if app.pipe.Phase() != pipeline.PhaseConfirmed {
		t.Fatalf("first enter must confirm, got %s", app.pipe.Phase())
	}
	press(t, app, "enter")

	if app.currentScreen().Kind != session.ScreenReporting {
		t.Fatalf("expected report screen, got %s", app.currentScreen().Kind)
	}
	if app.sess.Locked() {
		t.Fatalf("navigation must unlock after completion")
	}
	if !app.hasReport {
		t.Fatalf("report missing")
	}
	if len(app.rep.Events) != 5 {
		t.Fatalf("expected 5 simulated events, got %d: %+v", len(app.rep.Events), app.rep.Events)
	}
	last := app.rep.Events[len(app.rep.Events)-1]
	if last.Kind != pipeline.KindSuccess {
		t.Fatalf("expected success terminator, got %+v", last)
	}
	for i := 1; i < len(app.rep.Events); i++ {
		if app.rep.Events[i].Elapsed <= app.rep.Events[i-1].Elapsed {
			t.Fatalf("timestamps not strictly increasing: %+v", app.rep.Events)
		}
	}
	if got := app.rep.FinalValues["action"]; got != "loss" {
		t.Fatalf("final values lost the edit: %q", got)
	}
	if app.reportPath == "" {
		t.Fatalf("report was not saved")
	}
	if _, err := os.Stat(app.reportPath); err != nil {
		t.Fatalf("saved report unreadable: %v", err)
	}

	// Back lands on the editor with the edited values intact.
	press(t, app, "b")
	if app.currentScreen().Kind != session.ScreenEditing {
		t.Fatalf("expected editor after back, got %s", app.currentScreen().Kind)
	}
	if got := app.sess.Values()["action"]; got != "loss" {
		t.Fatalf("editor values lost after run: %q", got)
	}
}

func TestInvalidEnumEditKeepsValue(t *testing.T) {
	app := newTestApp(t)
	press(t, app, "enter") // Pod Faults
	press(t, app, "enter") // open the action editor
	app.input.SetValue("bogus")
	press(t, app, "enter")
	if !app.typing {
		t.Fatalf("rejected edit must keep the editor open")
	}
	if !strings.Contains(app.statusMsg, "Rejected") {
		t.Fatalf("expected rejection status, got %q", app.statusMsg)
	}
	if got := app.sess.Values()["action"]; got != "pod-failure" {
		t.Fatalf("rejected edit changed the value: %q", got)
	}
	press(t, app, "esc")
	if app.typing {
		t.Fatalf("esc must cancel the editor")
	}
}

func TestBackDisarmsThenPopsThenDiscards(t *testing.T) {
	app := newTestApp(t)
	press(t, app, "enter")
	fieldCount := len(app.sess.Experiment.Fields)
	for i := 0; i < fieldCount; i++ {
		press(t, app, "down")
	}
	press(t, app, "enter") // confirm screen
	press(t, app, "enter") // arm
	if app.pipe.Phase() != pipeline.PhaseConfirmed {
		t.Fatalf("expected confirmed pipeline")
	}
	press(t, app, "b") // disarm only
	if app.currentScreen().Kind != session.ScreenConfirming {
		t.Fatalf("disarm must stay on the confirm screen")
	}
	if app.pipe.Phase() != pipeline.PhaseIdle {
		t.Fatalf("expected idle pipeline after disarm, got %s", app.pipe.Phase())
	}
	press(t, app, "b") // pop to editor
	if app.currentScreen().Kind != session.ScreenEditing {
		t.Fatalf("expected editor, got %s", app.currentScreen().Kind)
	}
	if app.pipe != nil {
		t.Fatalf("leaving the confirm screen must discard the pipeline")
	}
	press(t, app, "b") // discard the session
	if app.sess != nil {
		t.Fatalf("expected session discard at stack bottom")
	}
	if app.currentScreen().Kind != session.ScreenSelecting {
		t.Fatalf("expected catalog, got %s", app.currentScreen().Kind)
	}
}

// blockingExecutor emits one event and then suspends until released.
type blockingExecutor struct {
	release chan struct{}
}

func (b *blockingExecutor) Run(ctx context.Context, req pipeline.Request) <-chan pipeline.StreamEvent {
	out := make(chan pipeline.StreamEvent)
	go func() {
		defer close(out)
		out <- pipeline.StreamEvent{Text: "started", Kind: pipeline.KindInfo}
		select {
		case <-b.release:
			out <- pipeline.StreamEvent{Text: "done", Kind: pipeline.KindSuccess}
		case <-ctx.Done():
		}
	}()
	return out
}

func TestBackRejectedWhileRunning(t *testing.T) {
	blocker := &blockingExecutor{release: make(chan struct{})}
	app := newTestApp(t, WithExecutor(blocker))
	press(t, app, "enter")
	fieldCount := len(app.sess.Experiment.Fields)
	for i := 0; i < fieldCount; i++ {
		press(t, app, "down")
	}
	press(t, app, "enter") // confirm screen
	press(t, app, "enter") // arm

	// Launch without draining the event pump so the run stays in flight.
	_, pending := app.Update(keyMsg("enter"))
	if app.currentScreen().Kind != session.ScreenRunning {
		t.Fatalf("expected running screen, got %s", app.currentScreen().Kind)
	}
	if !app.sess.Locked() {
		t.Fatalf("launch must lock navigation")
	}

	_, _ = app.Update(keyMsg("b"))
	if app.currentScreen().Kind != session.ScreenRunning {
		t.Fatalf("back must be rejected while running")
	}
	if !strings.Contains(app.statusMsg, "Cannot go back") {
		t.Fatalf("expected lock status, got %q", app.statusMsg)
	}

	close(blocker.release)
	runWizardCommands(t, app, pending)
	if app.currentScreen().Kind != session.ScreenReporting {
		t.Fatalf("expected report after release, got %s", app.currentScreen().Kind)
	}
	if app.sess.Locked() {
		t.Fatalf("completion must unlock navigation")
	}
}

// pumpDeferringSummary drains commands like runWizardCommands but holds back
// summary messages so a test can navigate before the summarizer answers.
func pumpDeferringSummary(t *testing.T, app *App, first tea.Cmd) []tea.Msg {
	t.Helper()
	var deferred []tea.Msg
	queue := []tea.Cmd{first}
	deadline := time.Now().Add(10 * time.Second)
	for len(queue) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("command pump did not settle")
		}
		cmd := queue[0]
		queue = queue[1:]
		if cmd == nil {
			continue
		}
		switch msg := cmd().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case summaryMsg:
			deferred = append(deferred, msg)
		case runEventMsg, reportSavedMsg:
			_, next := app.Update(msg)
			queue = append(queue, next)
		}
	}
	return deferred
}

type cannedSummarizer struct {
	text string
}

func (c cannedSummarizer) Summarize(context.Context, pipeline.Request, string) (string, error) {
	return c.text, nil
}

func TestReportPersistsWhenLeavingBeforeSummary(t *testing.T) {
	app := newTestApp(t, WithSummarizer(cannedSummarizer{text: "packets dropped then recovered"}))
	press(t, app, "enter")
	fieldCount := len(app.sess.Experiment.Fields)
	for i := 0; i < fieldCount; i++ {
		press(t, app, "down")
	}
	press(t, app, "enter") // confirm screen
	press(t, app, "enter") // arm

	// Launch and run to completion while the summary answer is held back.
	_, pending := app.Update(keyMsg("enter"))
	deferred := pumpDeferringSummary(t, app, pending)
	if len(deferred) != 1 {
		t.Fatalf("expected one pending summary, got %d", len(deferred))
	}
	if app.currentScreen().Kind != session.ScreenReporting {
		t.Fatalf("expected report screen, got %s", app.currentScreen().Kind)
	}

	// The report must already be on disk before any summary arrives.
	reportsDir := app.config.ReportsDir()
	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		t.Fatalf("read reports dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("completed run was not persisted: %d files under %s", len(entries), reportsDir)
	}

	// Navigate all the way back to the catalog before the summary lands.
	press(t, app, "b")
	press(t, app, "b")
	if app.sess != nil {
		t.Fatalf("expected session discard")
	}

	_, next := app.Update(deferred[0])
	runWizardCommands(t, app, next)

	entries, err = os.ReadDir(reportsDir)
	if err != nil {
		t.Fatalf("read reports dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("late summary must update the same file, got %d files", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(reportsDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read saved report: %v", err)
	}
	if !strings.Contains(string(data), "packets dropped then recovered") {
		t.Fatalf("late summary missing from saved report:\n%s", data)
	}
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, pipeline.Request, string) (string, error) {
	return "", errors.New("model offline")
}

func TestSummaryDegradesToPlaceholder(t *testing.T) {
	app := newTestApp(t, WithSummarizer(failingSummarizer{}))
	press(t, app, "enter")
	fieldCount := len(app.sess.Experiment.Fields)
	for i := 0; i < fieldCount; i++ {
		press(t, app, "down")
	}
	press(t, app, "enter")
	press(t, app, "enter")
	press(t, app, "enter")
	if app.currentScreen().Kind != session.ScreenReporting {
		t.Fatalf("expected report screen, got %s", app.currentScreen().Kind)
	}
	if app.rep.Summary != report.SummaryPlaceholder {
		t.Fatalf("summary = %q, want placeholder", app.rep.Summary)
	}
	if app.reportPath == "" {
		t.Fatalf("report must still be saved")
	}
}
