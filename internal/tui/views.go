package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"faultctl/internal/catalog"
	"faultctl/internal/pipeline"
	"faultctl/internal/session"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F7B801"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	kindStyles = map[pipeline.EventKind]lipgloss.Style{
		pipeline.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")),
		pipeline.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		pipeline.KindChaos:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		pipeline.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
)

// View renders the current wizard step to a string.
func (a *App) View() string {
	var content string
	switch a.currentScreen().Kind {
	case session.ScreenSelecting:
		content = a.renderPicker()
	case session.ScreenEditing:
		content = a.renderEditor()
	case session.ScreenConfirming:
		content = a.renderConfirm()
	case session.ScreenRunning:
		content = a.renderRun()
	case session.ScreenReporting:
		content = a.renderReport()
	}

	sections := []string{headerStyle.Render("⬡ FAULTCTL"), content}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, dimStyle.MarginTop(1).Render(a.statusMsg))
	return strings.Join(sections, "\n")
}

func (a *App) renderPicker() string {
	view := a.picker.View()
	if a.catalog.Len() == 0 {
		view = dimStyle.Render("No experiments available. Add definitions under .faultctl/experiments/.")
	}
	hint := hintStyle.Render("↑/↓ → move    enter → configure    b → back    q → quit")
	return lipgloss.JoinVertical(lipgloss.Left, view, hint)
}

func (a *App) renderEditor() string {
	exp := a.sess.Experiment
	values := a.sess.Values()
	header := titleStyle.Render(fmt.Sprintf("%s · %s", exp.Name, exp.Kind))

	var rows []string
	for i, field := range exp.Fields {
		marker := "  "
		label := fmt.Sprintf("%-28s", field.Label)
		value := values[field.Key]
		if field.Kind == catalog.FieldEnumerated {
			value = fmt.Sprintf("%s  %s", value, dimStyle.Render("("+strings.Join(field.Options, "/")+")"))
		}
		line := fmt.Sprintf("%s%s %s", marker, label, value)
		if i == a.fieldCursor {
			if a.typing {
				line = fmt.Sprintf("▸ %s %s", label, a.input.View())
			} else {
				line = selectedStyle.Render(fmt.Sprintf("▸ %s %s", label, value))
			}
		}
		rows = append(rows, line)
	}
	review := "  Review manifest →"
	if a.fieldCursor == len(exp.Fields) {
		review = selectedStyle.Render("▸ Review manifest →")
	}
	rows = append(rows, "", review)

	hint := hintStyle.Render("enter → edit field    b → back to catalog    q → quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		boxStyle.Render(strings.Join(rows, "\n")),
		hint,
	)
}

func (a *App) renderConfirm() string {
	exp := a.sess.Experiment
	header := titleStyle.Render(fmt.Sprintf("Confirm %s", exp.Name))
	warning := warnStyle.Render("⚠ This experiment will disrupt live workloads.")
	armed := ""
	if a.pipe != nil && a.pipe.Phase() == pipeline.PhaseConfirmed {
		armed = warnStyle.Render("Armed. Press enter to launch.")
	}
	hint := hintStyle.Render("enter → confirm/launch    b → disarm/back    ↑/↓ → scroll")
	parts := []string{header, warning, boxStyle.Render(a.manifestView.View())}
	if armed != "" {
		parts = append(parts, armed)
	}
	parts = append(parts, hint)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) renderRun() string {
	header := titleStyle.Render(fmt.Sprintf("Running %s", a.sess.Experiment.Name))
	runID := ""
	if a.pipe != nil {
		runID = dimStyle.Render(fmt.Sprintf("run %s", a.pipe.RunID()))
	}
	hint := hintStyle.Render("navigation locked until completion    ↑/↓ → scroll")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		runID,
		boxStyle.Render(a.eventView.View()),
		hint,
	)
}

func (a *App) renderReport() string {
	if !a.hasReport {
		return dimStyle.Render("Assembling report...")
	}
	rep := a.rep
	header := titleStyle.Render(fmt.Sprintf("Report · %s", rep.Experiment.Name))
	meta := dimStyle.Render(fmt.Sprintf("%s · %s", rep.ID, rep.CreatedAt.Format(time.RFC3339)))

	var values []string
	for _, key := range rep.Experiment.FieldKeys() {
		values = append(values, fmt.Sprintf("  %-40s %s", key, rep.FinalValues[key]))
	}
	valueBlock := titleStyle.Render("Parameters") + "\n" + strings.Join(values, "\n")

	summaryLine := dimStyle.Render("Summary pending...")
	if !a.summaryWait {
		if rep.Summary != "" {
			summaryLine = rep.Summary
		} else {
			summaryLine = dimStyle.Render("No summary requested")
		}
	}
	summaryBlock := titleStyle.Render("Summary") + "\n" + summaryLine

	saved := ""
	if a.reportPath != "" {
		saved = dimStyle.Render(fmt.Sprintf("Saved to %s", filepath.Base(a.reportPath)))
	}

	hint := hintStyle.Render("b → back to editor    q → quit    ↑/↓ → scroll events")
	parts := []string{
		header,
		meta,
		boxStyle.Render(a.eventView.View()),
		valueBlock,
		summaryBlock,
	}
	if saved != "" {
		parts = append(parts, saved)
	}
	parts = append(parts, hint)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	head := titleStyle.Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := hintStyle.MarginTop(0).Render(strings.Join(lines, "\n"))
	return boxStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}

// renderEventLog formats stamped events for the run and report viewports.
func renderEventLog(events []pipeline.Event) string {
	var b strings.Builder
	for _, ev := range events {
		style, ok := kindStyles[ev.Kind]
		if !ok {
			style = kindStyles[pipeline.KindInfo]
		}
		fmt.Fprintf(&b, "%s %s\n",
			dimStyle.Render(fmt.Sprintf("%8s", formatElapsed(ev.Elapsed))),
			style.Render(ev.Text),
		)
	}
	return b.String()
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Truncate(time.Millisecond).String()
	}
	return d.Truncate(100 * time.Millisecond).String()
}
