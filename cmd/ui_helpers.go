// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"

	"universalmcp/cli/internal/terminal"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// startInlineSpinner animates frames followed by text on a single line until
// the returned function is called. The line is cleared on stop and the cursor
// is hidden while spinning. When the output is not a terminal nothing is drawn.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	if !terminal.IsTerminal(w) {
		return func() {}
	}
	if width := terminal.Width(); width > 4 && len(text)+2 > width {
		text = text[:width-5] + "..."
	}

	cursor.Hide()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			line := fmt.Sprintf("%s %s", pterm.FgCyan.Sprint(frames[i%len(frames)]), text)
			fmt.Fprintf(w, "\r%s", line)
			select {
			case <-stop:
				fmt.Fprint(w, "\r")
				cursor.ClearLine()
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cursor.Show()
		})
	}
}

// greeting returns a time-of-day greeting for the given hour.
func greeting(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Good morning"
	case hour >= 12 && hour < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
