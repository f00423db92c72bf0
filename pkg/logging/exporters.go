// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// Actions Exporter
// =============================================================================

// ActionsExporter writes warnings and errors as GitHub Actions workflow
// commands, so they surface as annotations on the run.
//
// An entry with a "file" attribute is annotated against that file:
//
//	::warning file=docs/a.md::Skipping file: content fetch failed (error=...)
//
// Entries below LevelWarn are ignored.
//
// Thread Safety: Safe for concurrent use.
type ActionsExporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewActionsExporter creates an exporter writing to w, normally os.Stdout.
func NewActionsExporter(w io.Writer) *ActionsExporter {
	return &ActionsExporter{w: w}
}

// Export writes one workflow command for a warning or error entry.
func (e *ActionsExporter) Export(_ context.Context, entry LogEntry) error {
	var command string
	switch {
	case entry.Level >= LevelError:
		command = "error"
	case entry.Level == LevelWarn:
		command = "warning"
	default:
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := io.WriteString(e.w, FormatWorkflowCommand(command, entry)+"\n")
	return err
}

// Flush is a no-op; writes are immediate.
func (e *ActionsExporter) Flush(context.Context) error { return nil }

// Close is a no-op; the exporter does not own its writer.
func (e *ActionsExporter) Close() error { return nil }

// FormatWorkflowCommand renders entry as "::command props::message".
func FormatWorkflowCommand(command string, entry LogEntry) string {
	var sb strings.Builder
	sb.WriteString("::")
	sb.WriteString(command)

	if file, ok := entry.Attrs["file"].(string); ok && file != "" {
		sb.WriteString(" file=")
		sb.WriteString(escapeProperty(file))
	}
	sb.WriteString("::")

	msg := entry.Message
	if extra := formatAttrs(entry.Attrs); extra != "" {
		msg += " (" + extra + ")"
	}
	sb.WriteString(escapeData(msg))
	return sb.String()
}

// formatAttrs renders attributes other than "file" as sorted key=value pairs.
func formatAttrs(attrs map[string]any) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != "file" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, attrs[k]))
	}
	return strings.Join(parts, ", ")
}

var (
	dataEscaper     = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	propertyEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")
)

func escapeData(s string) string     { return dataEscaper.Replace(s) }
func escapeProperty(s string) string { return propertyEscaper.Replace(s) }

var _ LogExporter = (*ActionsExporter)(nil)

// =============================================================================
// Buffered Exporter
// =============================================================================

// BufferedExporter collects entries in memory, for tests.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{entries: make([]LogEntry, 0, 16)}
}

// Export appends entry.
func (e *BufferedExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op.
func (e *BufferedExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of the collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

var _ LogExporter = (*BufferedExporter)(nil)
