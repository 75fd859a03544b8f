// cmd/faultctl/main.go
//
// Entry point for the faultctl wizard. It prepares the .faultctl project
// directory, wires the optional summarizer, and hands control to the TUI.

package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"faultctl/internal/config"
	"faultctl/internal/summary"
	"faultctl/internal/tui"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitFaultctlDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .faultctl directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	var opts []tui.AppOption
	if key := cfg.SummaryAPIKey(); key != "" {
		s, err := summary.NewGenAISummarizer(context.Background(), key, cfg.Project.Summary.Model)
		if err != nil {
			// The wizard works without a summarizer; reports carry the
			// placeholder instead.
			fmt.Fprintf(os.Stderr, "Warning: summarizer unavailable: %v\n", err)
		} else {
			opts = append(opts, tui.WithSummarizer(s))
		}
	}

	app, err := tui.NewApp(cwd, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting faultctl: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
