// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides prompts and small terminal utilities for the CLI.
package terminal

import (
	"os"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

// IsTerminal reports whether v is an *os.File attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Width returns the width of stdout, or 80 when it is not a terminal.
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// linesFor returns how many terminal rows textLength characters occupy.
func linesFor(textLength, width int) int {
	if width <= 0 {
		width = 80
	}
	n := (textLength + width - 1) / width
	if n < 1 {
		n = 1
	}
	return n
}

// ClearPreviousLines removes a prompt and its answer from the screen.
// textLength is the number of characters printed (prompt plus input); the
// extra row created by Enter is cleared as well.
func ClearPreviousLines(textLength int) {
	cursor.ClearLine()
	cursor.ClearLinesUp(linesFor(textLength, Width()))
	cursor.StartOfLine()
}
