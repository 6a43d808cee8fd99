package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"trb/internal/domain"
	"trb/internal/tree"
)

// Formatter renders trees and run summaries for the CLI.
type Formatter struct{}

// NewFormatter creates a new Formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// PrintTree renders the discovered test tree with box-drawing guides.
func (f *Formatter) PrintTree(root *tree.Node) {
	for i, child := range root.Children {
		f.printNode(child, "", i == len(root.Children)-1)
	}
}

func (f *Formatter) printNode(n *tree.Node, prefix string, last bool) {
	connector := "├── "
	childPrefix := prefix + "│   "
	if last {
		connector = "└── "
		childPrefix = prefix + "    "
	}

	title := n.Title
	if n.Kind == tree.KindGroup {
		title = color.CyanString(title)
	}
	location := ""
	if n.Range != nil {
		location = color.New(color.Faint).Sprintf("  :%d", n.Range.Line)
	}
	fmt.Printf("%s%s%s%s\n", prefix, connector, title, location)

	for i, child := range n.Children {
		f.printNode(child, childPrefix, i == len(n.Children)-1)
	}
}

// PrintRunSummary displays the outcome table of a completed run.
func (f *Formatter) PrintRunSummary(output *domain.RunOutput) {
	meta := output.Meta

	fmt.Println()
	color.Cyan("╔═══════════════════════════════════════════════╗")
	color.Cyan("║                  Run Summary                  ║")
	color.Cyan("╚═══════════════════════════════════════════════╝")

	fmt.Printf("  %-12s ", "Total")
	color.White("%d", meta.Total)
	fmt.Printf("  %-12s ", "Passed")
	color.Green("%d", meta.Passed)
	fmt.Printf("  %-12s ", "Failed")
	color.Red("%d", meta.Failed)
	fmt.Printf("  %-12s ", "Duration")
	color.White("%.2fs", meta.DurationSeconds)
	if meta.Interrupted {
		fmt.Printf("  %-12s ", "Status")
		color.Yellow("interrupted (results incomplete)")
	}
	fmt.Println()

	if meta.Failed == 0 && !meta.Interrupted {
		color.Green("✓ All tests passed")
	} else if meta.Failed > 0 {
		color.Red("✗ %d test(s) failed", meta.Failed)
	}
}

// PrintFailures lists each failed test with its message and location, keyed
// by file and line for inline annotation by a consuming editor.
func (f *Formatter) PrintFailures(output *domain.RunOutput) {
	for _, outcome := range output.Outcomes {
		if outcome.Ok {
			continue
		}
		fmt.Println()
		color.Red("✗ %s", outcome.Title)
		color.New(color.Faint).Printf("  %s:%d\n", outcome.File, outcome.Line)
		if outcome.Failure == nil {
			continue
		}
		for _, line := range strings.Split(outcome.Failure.Message, "\n") {
			fmt.Printf("  %s\n", line)
		}
		if outcome.Failure.File != "" {
			color.New(color.Faint).Printf("  at %s:%d\n", outcome.Failure.File, outcome.Failure.Line)
		}
	}
}

// Warn prints a one-line warning, e.g. runner-not-found or version mismatch.
func (f *Formatter) Warn(format string, args ...interface{}) {
	color.Yellow(format, args...)
}
