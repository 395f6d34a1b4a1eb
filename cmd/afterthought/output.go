package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"github.com/nguyentantai21042004/afterthought/internal/pipeline"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

func newTable(headers ...string) *ltable.Table {
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// isInteractive reports whether r is a terminal a person can answer from.
func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func stageMark(s pipeline.Stage) string {
	switch {
	case s == pipeline.StageSuccess:
		return successStyle.Render("✓")
	case s == pipeline.StageFailed:
		return failedStyle.Render("✗")
	case s == pipeline.StagePlanned:
		return "→"
	default:
		return mutedStyle.Render("·")
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printRunSummary(w io.Writer, s *pipeline.RunSummary, dryRun bool) {
	p := newPrinter()
	if len(s.Items) == 0 {
		p.Fprintln(w, "No episodes to process.")
		return
	}

	for _, r := range s.Items {
		line := fmt.Sprintf("%s %-22s %s - %s", stageMark(r.Stage), r.Stage, r.Item.Channel, r.Item.Title)
		switch {
		case r.OutputPath != "":
			line += " -> " + r.OutputPath
		case r.Err != nil:
			line += ": " + r.Err.Error()
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	if dryRun {
		p.Fprintf(w, "Would process: %d  Skipped: %d\n", s.Planned, s.Skipped)
		return
	}
	p.Fprintf(w, "Processed: %d  Skipped: %d  Failed: %d\n", s.Processed, s.Skipped, s.Failed)
	if s.TotalTokens() > 0 {
		p.Fprintf(w, "Tokens: %d in / %d out (%d total)\n", s.InputTokens, s.OutputTokens, s.TotalTokens())
	}
	p.Fprintf(w, "Elapsed: %s\n", s.Elapsed.Round(time.Second))
}
