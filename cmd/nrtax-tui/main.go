package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/nrtax/internal/batch"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/rgehrsitz/nrtax/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: nrtax-tui <input-file>")
		os.Exit(1)
	}
	inputPath := os.Args[1]

	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		fmt.Printf("Error: input file not found: %s\n", inputPath)
		os.Exit(1)
	}

	reg, err := ruleset.Default()
	if err != nil {
		fmt.Printf("Error loading rulesets: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(
		tui.NewModel(inputPath, batch.NewPipeline(reg)),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
