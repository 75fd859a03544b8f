// internal/tui/app.go
//
// The wizard TUI for faultctl. It uses bubbletea, which follows The Elm
// Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// Raw key presses are translated into the four session.Controller operations
// (Select, Activate, Back, Quit); everything below this package is keyboard
// agnostic.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"faultctl/internal/catalog"
	"faultctl/internal/config"
	"faultctl/internal/editor"
	"faultctl/internal/executor"
	"faultctl/internal/logbook"
	"faultctl/internal/manifest"
	"faultctl/internal/pipeline"
	"faultctl/internal/report"
	"faultctl/internal/session"
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithExecutor overrides the producer selected from project configuration.
func WithExecutor(exec pipeline.Executor) AppOption {
	return func(a *App) {
		if exec != nil {
			a.executor = exec
		}
	}
}

// WithSummarizer installs the optional report summarizer.
func WithSummarizer(s report.Summarizer) AppOption {
	return func(a *App) {
		a.summarizer = s
	}
}

// WithCatalog replaces the loaded experiment catalog.
func WithCatalog(c *catalog.Catalog) AppOption {
	return func(a *App) {
		if c != nil {
			a.catalog = c
			a.refreshPicker()
		}
	}
}

type runEventMsg struct {
	ev pipeline.Event
	ok bool
}

// summaryMsg carries the report it belongs to so a late summary still lands
// in the right file after the operator has navigated away.
type summaryMsg struct {
	rep  report.Report
	text string
	err  error
}

type reportSavedMsg struct {
	path string
	err  error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	config     *config.Config
	catalog    *catalog.Catalog
	logbook    *logbook.Logbook
	executor   pipeline.Executor
	summarizer report.Summarizer

	// UI components
	picker       list.Model
	input        textinput.Model
	manifestView viewport.Model
	eventView    viewport.Model

	// Wizard state. sess is nil while the catalog picker is showing; the
	// picker is the only screen that exists without a session.
	sess         *session.State
	fieldCursor  int
	typing       bool
	pipe         *pipeline.Pipeline
	runCh        <-chan pipeline.Event
	manifestText string
	runEvents    []pipeline.Event
	rep          report.Report
	hasReport    bool
	summaryWait  bool
	reportPath   string

	statusMsg string
	width     int
	height    int

	// Commands produced by Controller operations, drained by Update.
	queued []tea.Cmd
}

var _ session.Controller = (*App)(nil)

// pickerItem implements list.Item for catalog entries.
type pickerItem struct {
	exp *catalog.Experiment
}

func (i pickerItem) Title() string { return i.exp.Name }
func (i pickerItem) Description() string {
	return fmt.Sprintf("%s · %s", i.exp.Kind, i.exp.Description)
}
func (i pickerItem) FilterValue() string { return i.exp.Name }

// NewApp creates a new App instance rooted at projectDir.
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.ExperimentsDir())
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "journey.log"))
	if err != nil {
		lb = nil
	}

	picker := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	picker.Title = "⬡ FAULT CATALOG"
	picker.SetShowStatusBar(false)
	picker.SetFilteringEnabled(false)

	input := textinput.New()
	input.CharLimit = 256

	app := &App{
		config:       cfg,
		catalog:      cat,
		logbook:      lb,
		executor:     executorFromConfig(cfg),
		picker:       picker,
		input:        input,
		manifestView: viewport.New(0, 0),
		eventView:    viewport.New(0, 0),
		statusMsg:    "Select an experiment to begin",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.refreshPicker()
	if lb != nil {
		lb.Info("Session opened · %d experiment(s) in catalog · executor: %s",
			app.catalog.Len(), cfg.ExecutorMode())
	}
	return app, nil
}

func executorFromConfig(cfg *config.Config) pipeline.Executor {
	if cfg.ExecutorMode() == config.ExecutorKubectl {
		return &executor.Kubectl{
			Binary:    cfg.Project.Executor.Binary,
			Context:   cfg.Project.Executor.Context,
			Namespace: cfg.Project.Executor.Namespace,
		}
	}
	return &executor.Simulator{}
}

func (a *App) refreshPicker() {
	items := make([]list.Item, 0, a.catalog.Len())
	for _, exp := range a.catalog.Experiments() {
		items = append(items, pickerItem{exp: exp})
	}
	a.picker.SetItems(items)
}

// currentScreen resolves the active wizard step. Without a session only the
// catalog picker exists.
func (a *App) currentScreen() session.Screen {
	if a.sess == nil {
		return session.Screen{Kind: session.ScreenSelecting}
	}
	return a.sess.Top()
}

func (a *App) enqueue(cmd tea.Cmd) {
	if cmd != nil {
		a.queued = append(a.queued, cmd)
	}
}

func (a *App) drainQueued() []tea.Cmd {
	cmds := a.queued
	a.queued = nil
	return cmds
}

func (a *App) logInfo(format string, args ...any)  { a.logbook.Info(format, args...) }
func (a *App) logWarn(format string, args ...any)  { a.logbook.Warn(format, args...) }
func (a *App) logError(format string, args ...any) { a.logbook.Error(format, args...) }

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.picker.SetSize(max(20, msg.Width-6), max(8, msg.Height-14))
		a.manifestView.Width = max(20, msg.Width-8)
		a.manifestView.Height = max(6, msg.Height-16)
		a.eventView.Width = max(20, msg.Width-8)
		a.eventView.Height = max(6, msg.Height-16)
		return a, nil

	case runEventMsg:
		return a.handleRunEvent(msg)

	case summaryMsg:
		return a.handleSummary(msg)

	case reportSavedMsg:
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("Report not saved: %v", msg.err)
			a.logError("Report save failed: %v", msg.err)
		} else {
			a.reportPath = msg.path
			a.statusMsg = fmt.Sprintf("Report saved to %s", msg.path)
			a.logInfo("Report saved to %s", msg.path)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.forwardToComponents(msg)
}

// handleKey maps raw key presses onto the Controller surface. While the field
// editor input is focused, printable keys belong to the input.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.typing {
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "enter":
			a.commitEdit()
			return a, nil
		case "esc":
			a.typing = false
			a.input.Blur()
			a.statusMsg = "Edit cancelled"
			return a, nil
		default:
			var cmd tea.Cmd
			a.input, cmd = a.input.Update(msg)
			return a, cmd
		}
	}

	switch msg.String() {
	case "ctrl+c", "q":
		a.Quit()
	case "up", "k":
		a.Select(-1)
	case "down", "j":
		a.Select(1)
	case "enter":
		a.Activate()
	case "b", "esc":
		a.Back()
	default:
		return a.forwardToComponents(msg)
	}
	return a, tea.Batch(a.drainQueued()...)
}

func (a *App) forwardToComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if a.currentScreen().Kind == session.ScreenSelecting {
		var cmd tea.Cmd
		a.picker, cmd = a.picker.Update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	cmds = append(cmds, a.drainQueued()...)
	return a, tea.Batch(cmds...)
}

// Select moves the highlight on the current screen.
func (a *App) Select(delta int) {
	switch a.currentScreen().Kind {
	case session.ScreenSelecting:
		idx := a.picker.Index() + delta
		if idx < 0 {
			idx = 0
		}
		if last := len(a.picker.Items()) - 1; idx > last {
			idx = max(0, last)
		}
		a.picker.Select(idx)
	case session.ScreenEditing:
		a.moveFieldCursor(delta)
	case session.ScreenConfirming:
		scrollViewport(&a.manifestView, delta)
	case session.ScreenRunning, session.ScreenReporting:
		scrollViewport(&a.eventView, delta)
	}
}

// Activate performs the primary action of the current screen.
func (a *App) Activate() {
	switch a.currentScreen().Kind {
	case session.ScreenSelecting:
		a.startSession()
	case session.ScreenEditing:
		a.activateEditor()
	case session.ScreenConfirming:
		a.activateConfirm()
	case session.ScreenRunning:
		a.statusMsg = "Execution in progress"
	case session.ScreenReporting:
		a.statusMsg = "Press b to return to the editor, q to quit"
	}
}

// Back pops one wizard step. Popping the last screen discards the session
// and collapses to the catalog; while a run is active the pop is rejected.
func (a *App) Back() {
	if a.sess == nil {
		a.statusMsg = "Already at the catalog · q quits"
		return
	}
	top := a.sess.Top()

	// A confirmed-but-unlaunched run disarms before the screen pops.
	if top.Kind == session.ScreenConfirming && a.pipe != nil && a.pipe.Phase() == pipeline.PhaseConfirmed {
		_ = a.pipe.Cancel()
		a.statusMsg = "Launch cancelled · press b again to go back"
		a.logInfo("Run disarmed on %s", a.sess.Experiment.Name)
		return
	}

	ok, err := a.sess.Pop()
	if err != nil {
		if errors.Is(err, session.ErrNavigationLocked) {
			a.statusMsg = "Cannot go back while the experiment is running"
			return
		}
		a.statusMsg = err.Error()
		return
	}
	if !ok {
		a.logInfo("Session on %s discarded", a.sess.Experiment.Name)
		a.discardSession()
		a.statusMsg = "Select an experiment to begin"
		return
	}
	switch top.Kind {
	case session.ScreenConfirming:
		// The pipeline is single use; leaving the confirm screen throws it
		// away so a later confirm starts fresh.
		a.pipe = nil
		a.manifestText = ""
		a.statusMsg = "Back to the editor"
	case session.ScreenReporting:
		a.pipe = nil
		a.hasReport = false
		a.summaryWait = false
		a.runEvents = nil
		a.reportPath = ""
		a.statusMsg = "Back to the editor · values kept"
	}
}

// Quit exits the program.
func (a *App) Quit() {
	a.logInfo("Session closed")
	a.enqueue(tea.Quit)
}

func (a *App) startSession() {
	item, ok := a.picker.SelectedItem().(pickerItem)
	if !ok {
		a.statusMsg = "Catalog is empty"
		return
	}
	a.sess = session.New(item.exp)
	a.fieldCursor = 0
	a.hasReport = false
	a.runEvents = nil
	a.reportPath = ""
	a.statusMsg = fmt.Sprintf("Editing %s · enter edits a field", item.exp.Name)
	a.logInfo("Experiment %s selected (%s)", item.exp.Name, item.exp.Kind)
}

func (a *App) discardSession() {
	a.sess = nil
	a.pipe = nil
	a.runCh = nil
	a.typing = false
	a.input.Blur()
	a.manifestText = ""
	a.runEvents = nil
	a.hasReport = false
	a.summaryWait = false
	a.reportPath = ""
}

// moveFieldCursor moves the highlight across the schema fields plus the
// trailing review row, mirroring the selection into the stack top.
func (a *App) moveFieldCursor(delta int) {
	fields := a.sess.Experiment.Fields
	cursor := a.fieldCursor + delta
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(fields) {
		cursor = len(fields)
	}
	a.fieldCursor = cursor
	scr := session.Screen{Kind: session.ScreenEditing}
	if cursor < len(fields) {
		scr.FieldKey = fields[cursor].Key
	}
	a.sess.Replace(scr)
}

func (a *App) activateEditor() {
	fields := a.sess.Experiment.Fields
	if a.fieldCursor >= len(fields) {
		a.proceedToConfirm()
		return
	}
	spec := fields[a.fieldCursor]
	a.input.SetValue(a.sess.Values()[spec.Key])
	a.input.CursorEnd()
	if spec.Kind == catalog.FieldEnumerated {
		a.input.Placeholder = strings.Join(spec.Options, " | ")
	} else {
		a.input.Placeholder = ""
	}
	a.input.Focus()
	a.typing = true
	a.statusMsg = fmt.Sprintf("Editing %s · enter commits, esc cancels", spec.Label)
}

func (a *App) commitEdit() {
	key := a.sess.Top().FieldKey
	updated, err := editor.EditField(a.sess.Experiment, a.sess.Values(), key, a.input.Value())
	if err != nil {
		// The value is untouched; the operator corrects the input in place.
		a.statusMsg = fmt.Sprintf("Rejected: %v", err)
		a.logWarn("Edit rejected for %s: %v", key, err)
		return
	}
	if err := a.sess.SetValues(updated); err != nil {
		a.statusMsg = err.Error()
		a.logError("Value set rejected: %v", err)
		return
	}
	a.typing = false
	a.input.Blur()
	a.statusMsg = fmt.Sprintf("%s = %s", key, updated[key])
	a.logInfo("Field %s set to %q", key, updated[key])
}

func (a *App) proceedToConfirm() {
	text, err := manifest.Render(a.sess.Experiment, a.sess.Values())
	if err != nil {
		a.statusMsg = fmt.Sprintf("Manifest error: %v", err)
		a.logError("Manifest render failed: %v", err)
		return
	}
	a.manifestText = text
	a.manifestView.SetContent(text)
	a.manifestView.GotoTop()
	a.pipe = pipeline.New()
	a.sess.Push(session.Screen{Kind: session.ScreenConfirming})
	a.statusMsg = "Review the manifest · enter confirms"
	a.logInfo("Manifest rendered for %s (%d bytes)", a.sess.Experiment.Name, len(text))
}

// activateConfirm walks the run state machine: the first activation arms the
// pipeline, the second launches it. Nothing confirms implicitly.
func (a *App) activateConfirm() {
	switch a.pipe.Phase() {
	case pipeline.PhaseIdle:
		if err := a.pipe.Confirm(); err != nil {
			a.statusMsg = err.Error()
			return
		}
		a.statusMsg = "Confirmed · enter launches, b disarms"
		a.logInfo("Run confirmed for %s", a.sess.Experiment.Name)
	case pipeline.PhaseConfirmed:
		a.launchRun()
	default:
		a.statusMsg = "Run already started"
	}
}

func (a *App) launchRun() {
	req := buildRequest(a.sess.Experiment, a.sess.Values(), a.manifestText)
	events, err := a.pipe.Start(context.Background(), a.executor, req, a.sess.Values())
	if err != nil {
		a.statusMsg = fmt.Sprintf("Launch failed: %v", err)
		a.logError("Launch failed: %v", err)
		return
	}
	a.sess.Lock()
	a.sess.Replace(session.Screen{Kind: session.ScreenRunning})
	a.runCh = events
	a.runEvents = nil
	a.eventView.SetContent("")
	a.statusMsg = "Running · back is disabled until completion"
	a.logbook.Chaos("Run %s launched: %s on %s", a.pipe.RunID(), req.DocumentKind, req.Target)
	a.enqueue(waitForRunEvent(events))
}

func (a *App) handleRunEvent(msg runEventMsg) (tea.Model, tea.Cmd) {
	if a.sess == nil || a.pipe == nil {
		return a, nil
	}
	if msg.ok {
		a.runEvents = append(a.runEvents, msg.ev)
		a.eventView.SetContent(renderEventLog(a.runEvents))
		a.eventView.GotoBottom()
		switch msg.ev.Kind {
		case pipeline.KindChaos:
			a.logbook.Chaos("%s", msg.ev.Text)
		case pipeline.KindError:
			a.logError("%s", msg.ev.Text)
		}
		return a, waitForRunEvent(a.runCh)
	}

	// Stream closed: the pipeline is Complete and the values are frozen.
	a.sess.Unlock()
	a.rep = report.Assemble(a.sess.Experiment, a.pipe.FinalValues(), a.pipe.Events())
	a.hasReport = true
	a.sess.Replace(session.Screen{Kind: session.ScreenReporting})
	a.eventView.SetContent(renderEventLog(a.rep.Events))
	a.eventView.GotoTop()
	a.logInfo("Run %s complete · %d event(s)", a.pipe.RunID(), len(a.rep.Events))

	// The report is persisted right away; the summary only ever updates it.
	saveCmd := saveReportCmd(a.config.ReportsDir(), a.rep)
	if a.summarizer != nil {
		a.summaryWait = true
		a.statusMsg = "Run complete · summarizing"
		return a, tea.Batch(saveCmd, summarizeCmd(a.summarizer, buildRequest(a.sess.Experiment, a.rep.FinalValues, a.manifestText), a.rep))
	}
	a.statusMsg = "Run complete"
	return a, saveCmd
}

func (a *App) handleSummary(msg summaryMsg) (tea.Model, tea.Cmd) {
	attached := report.AttachSummary(msg.rep, msg.text)
	if msg.err != nil {
		attached = report.AttachSummary(msg.rep, "")
		a.logWarn("Summary unavailable: %v", msg.err)
	} else {
		a.logInfo("Summary attached")
	}
	if a.hasReport && a.rep.ID == attached.ID {
		a.rep = attached
		a.summaryWait = false
		a.statusMsg = "Run complete"
	}
	// Re-save even if the operator moved on; the summary belongs in the file.
	return a, saveReportCmd(a.config.ReportsDir(), attached)
}

func waitForRunEvent(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return runEventMsg{ev: ev, ok: ok}
	}
}

func summarizeCmd(s report.Summarizer, req pipeline.Request, rep report.Report) tea.Cmd {
	return func() tea.Msg {
		text, err := s.Summarize(context.Background(), req, rep.LogText())
		return summaryMsg{rep: rep, text: text, err: err}
	}
}

func saveReportCmd(dir string, rep report.Report) tea.Cmd {
	return func() tea.Msg {
		path, err := report.Save(dir, rep)
		return reportSavedMsg{path: path, err: err}
	}
}

// buildRequest derives the producer request from the schema values. The
// target label pair comes from the first selector field, if any.
func buildRequest(exp *catalog.Experiment, values map[string]string, manifestText string) pipeline.Request {
	req := pipeline.Request{
		DocumentKind: exp.Kind,
		Action:       values["action"],
		Duration:     values["duration"],
		Manifest:     manifestText,
	}
	for _, field := range exp.Fields {
		if !strings.Contains(field.Key, "labelSelectors") {
			continue
		}
		segments := catalog.SplitKey(field.Key)
		label := segments[len(segments)-1]
		req.Target = fmt.Sprintf("%s=%s", label, values[field.Key])
		break
	}
	return req
}

func scrollViewport(vp *viewport.Model, delta int) {
	if delta < 0 {
		vp.LineUp(-delta)
	} else {
		vp.LineDown(delta)
	}
}
