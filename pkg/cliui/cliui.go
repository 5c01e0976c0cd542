// Package cliui provides reusable terminal UI helpers (spinners, step
// indicators, styled output, markdown rendering) for reel CLI commands.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	// HeaderStyle and KeyStyle label output sections and fields.
	HeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// NameStyle and ValueStyle carry the emphasized halves of key/value
	// lines: app names, models, config values.
	NameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	// IDStyle renders session and event identifiers.
	IDStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	// RoleStyle and PreviewStyle render transcript turns.
	RoleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	PreviewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	DimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	WarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	StepStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// spinnerFrames matches bubbletea's spinner.Dot pattern used in the browse TUI.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// SpinnerFrame returns the spinner glyph for an animation tick, styled.
// Callers that drive their own redraw loop (the chat prompt while a run
// is loading) use this instead of Step.
func SpinnerFrame(tick int) string {
	return spinnerStyle.Render(spinnerFrames[tick%len(spinnerFrames)])
}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s", SpinnerFrame(frame), msg)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// RoleLabel renders a bracketed transcript role tag, e.g. "[user]".
func RoleLabel(role string) string {
	return RoleStyle.Render("[" + role + "]")
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown for terminal display at the default
// 80-column wrap.
func RenderMarkdown(content string) (string, error) {
	return RenderMarkdownWidth(content, 80)
}

// RenderMarkdownWidth renders markdown wrapped to the given width. The
// browse TUI passes its viewport width so rendered transcripts reflow
// with the window. On render failure, the raw content comes back along
// with the error so callers can fall back to plain text.
func RenderMarkdownWidth(content string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
