// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal status output for the pairbench CLI.
//
// Status output is separate from the benchmark report: the report is plain
// text for stdout, while ux lines go to a status writer (normally stderr).
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// styles are bound to one renderer so color detection follows the writer,
// not the process stdout.
type styles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	bold    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	error   lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		muted:   r.NewStyle().Foreground(ColorSlate),
		bold:    r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(ColorSuccess),
		warning: r.NewStyle().Foreground(ColorWarning),
		error:   r.NewStyle().Foreground(ColorError),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
	}
}

// Output writes status lines at a personality level.
//
// Thread Safety: Not safe for concurrent use; the CLI writes status from one
// goroutine.
type Output struct {
	w      io.Writer
	level  PersonalityLevel
	styles styles
}

// NewOutput creates an Output writing to w.
func NewOutput(w io.Writer, level PersonalityLevel) *Output {
	return &Output{
		w:      w,
		level:  level,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Level returns the personality level.
func (o *Output) Level() PersonalityLevel {
	return o.level
}

func (o *Output) render(s lipgloss.Style, text string) string {
	if o.level != PersonalityFull {
		return text
	}
	return s.Render(text)
}

func (o *Output) icon(i Icon) string {
	switch i {
	case IconSuccess:
		return o.render(o.styles.success, string(i))
	case IconWarning:
		return o.render(o.styles.warning, string(i))
	case IconError:
		return o.render(o.styles.error, string(i))
	default:
		return string(i)
	}
}

// Banner prints a boxed title and subtitle. Machine output skips it.
func (o *Output) Banner(title, subtitle string) {
	switch o.level {
	case PersonalityMachine:
		return
	case PersonalityMinimal:
		fmt.Fprintf(o.w, "%s - %s\n", title, subtitle)
	default:
		body := o.styles.title.Render(title) + "\n" + o.styles.muted.Render(subtitle)
		fmt.Fprintln(o.w, o.styles.box.Render(body))
	}
}

// Step prints a progress line for one scenario.
func (o *Output) Step(index, total int, text string) {
	if o.level == PersonalityMachine {
		fmt.Fprintf(o.w, "RUN %d/%d: %s\n", index, total, text)
		return
	}
	counter := fmt.Sprintf("[%d/%d]", index, total)
	fmt.Fprintf(o.w, "%s %s %s\n", o.render(o.styles.muted, counter), o.icon(IconArrow), text)
}

// Success prints a success message with checkmark.
func (o *Output) Success(text string) {
	if o.level == PersonalityMachine {
		fmt.Fprintf(o.w, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(o.w, "%s %s\n", o.icon(IconSuccess), o.render(o.styles.success, text))
}

// Warning prints a warning message.
func (o *Output) Warning(text string) {
	if o.level == PersonalityMachine {
		fmt.Fprintf(o.w, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(o.w, "%s %s\n", o.icon(IconWarning), o.render(o.styles.warning, text))
}

// Error prints an error message.
func (o *Output) Error(text string) {
	if o.level == PersonalityMachine {
		fmt.Fprintf(o.w, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(o.w, "%s %s\n", o.icon(IconError), o.render(o.styles.error, text))
}

// Summary prints a summary line with counts.
func (o *Output) Summary(passed, failed, total int) {
	if o.level == PersonalityMachine {
		fmt.Fprintf(o.w, "SUMMARY: passed=%d failed=%d total=%d\n", passed, failed, total)
		return
	}
	fmt.Fprintf(o.w, "%s %s  %s %s  %s %s\n",
		o.render(o.styles.success, fmt.Sprintf("%d", passed)), o.render(o.styles.muted, "passed"),
		o.render(o.styles.error, fmt.Sprintf("%d", failed)), o.render(o.styles.muted, "failed"),
		o.render(o.styles.bold, fmt.Sprintf("%d", total)), o.render(o.styles.muted, "total"),
	)
}

// ProgressBar renders a simple progress bar.
func (o *Output) ProgressBar(current, total, width int) string {
	if o.level == PersonalityMachine || total <= 0 {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	pct = min(max(pct, 0), 1)
	filled := int(pct * float64(width))

	bar := o.render(o.styles.success, strings.Repeat("█", filled)) +
		o.render(o.styles.muted, strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
