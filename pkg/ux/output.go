// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the eolblocker CLI.
//
// Output is styled with lipgloss when the destination is a terminal and
// falls back to plain, greppable lines otherwise (CI logs, pipes).
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title    lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// plainPrefix is the line prefix used for each icon in plain mode.
var plainPrefix = map[Icon]string{
	IconSuccess: "OK:",
	IconWarning: "WARN:",
	IconError:   "ERROR:",
	IconBullet:  "-",
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes status lines to one destination.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter returns a Printer for w, styled only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w)}
}

// NewPlainPrinter returns a Printer that never emits escape sequences.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Styled reports whether the printer emits lipgloss styling.
func (p *Printer) Styled() bool { return p.styled }

// Title prints a heading. Plain mode omits it.
func (p *Printer) Title(text string) {
	if !p.styled {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Status prints a line prefixed with icon.
func (p *Printer) Status(icon Icon, text string) {
	if !p.styled {
		fmt.Fprintf(p.w, "%s %s\n", plainPrefix[icon], text)
		return
	}
	style := Styles.Bold
	switch icon {
	case IconSuccess:
		style = Styles.Success
	case IconWarning:
		style = Styles.Warning
	case IconError:
		style = Styles.Error
	}
	fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) { p.Status(IconSuccess, text) }

// Warning prints a warning line.
func (p *Printer) Warning(text string) { p.Status(IconWarning, text) }

// Error prints an error line.
func (p *Printer) Error(text string) { p.Status(IconError, text) }

// Item prints an indented list entry, with an optional muted note.
func (p *Printer) Item(text, note string) {
	if !p.styled {
		if note != "" {
			fmt.Fprintf(p.w, "  - %s (%s)\n", text, note)
			return
		}
		fmt.Fprintf(p.w, "  - %s\n", text)
		return
	}
	if note != "" {
		fmt.Fprintf(p.w, "  %s %s %s\n", IconBullet.Render(), text, Styles.Muted.Render("("+note+")"))
		return
	}
	fmt.Fprintf(p.w, "  %s %s\n", IconBullet.Render(), text)
}

// Box prints title and content in a rounded box, or as "title: content"
// lines in plain mode.
func (p *Printer) Box(title, content string, failed bool) {
	if !p.styled {
		fmt.Fprintf(p.w, "%s:\n%s\n", title, strings.TrimRight(content, "\n"))
		return
	}
	style, titleStyle := Styles.Box, Styles.Title
	if failed {
		style, titleStyle = Styles.ErrorBox, Styles.Error.Bold(true)
	}
	fmt.Fprintln(p.w, style.Width(72).Render(titleStyle.Render(title)+"\n"+strings.TrimRight(content, "\n")))
}

// Counts prints a one-line summary of labelled counts, e.g.
// "3 inspected  1 excluded".
func (p *Printer) Counts(pairs ...CountPair) {
	parts := make([]string, 0, len(pairs))
	for _, c := range pairs {
		if !p.styled {
			parts = append(parts, fmt.Sprintf("%s=%d", c.Label, c.Value))
			continue
		}
		parts = append(parts, Styles.Bold.Render(fmt.Sprintf("%d", c.Value))+" "+Styles.Muted.Render(c.Label))
	}
	if !p.styled {
		fmt.Fprintf(p.w, "SUMMARY: %s\n", strings.Join(parts, " "))
		return
	}
	fmt.Fprintf(p.w, "\n%s\n", strings.Join(parts, "  "))
}

// CountPair is one entry for Counts.
type CountPair struct {
	Label string
	Value int
}
