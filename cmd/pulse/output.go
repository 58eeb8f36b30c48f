// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Pulse palette
var (
	colorTeal  = lipgloss.Color("#2CD7C7")
	colorSlate = lipgloss.Color("#2C4A54")
	colorAmber = lipgloss.Color("#F4D03F")
	colorRed   = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorTeal),
	Muted:   lipgloss.NewStyle().Foreground(colorSlate),
	Success: lipgloss.NewStyle().Foreground(colorTeal),
	Warning: lipgloss.NewStyle().Foreground(colorAmber),
	Error:   lipgloss.NewStyle().Foreground(colorRed),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorTeal).
		Padding(0, 1),
}

// printer writes command output, styled on a terminal and plain
// otherwise.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer, styled bool) printer {
	return printer{w: w, styled: styled}
}

func (p printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Title prints a heading.
func (p printer) Title(text string) {
	fmt.Fprintln(p.w, p.render(styles.Title, text))
}

// Success prints a confirmation line.
func (p printer) Success(text string) {
	fmt.Fprintln(p.w, p.render(styles.Success, "✓ "+text))
}

// Warning prints a warning line.
func (p printer) Warning(text string) {
	fmt.Fprintln(p.w, p.render(styles.Warning, "⚠ "+text))
}

// Muted prints secondary text.
func (p printer) Muted(text string) {
	fmt.Fprintln(p.w, p.render(styles.Muted, text))
}

// Linef prints an unstyled line.
func (p printer) Linef(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Box prints content in a bordered box on a terminal, or as a titled
// block otherwise.
func (p printer) Box(title, content string) {
	if !p.styled {
		fmt.Fprintf(p.w, "%s\n%s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, styles.Box.Render(styles.Title.Render(title)+"\n"+content))
}

// JSON prints v as indented JSON.
func (p printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
