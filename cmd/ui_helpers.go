// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"polenta/gateway/internal/terminal"

	"atomicgo.dev/cursor"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startInlineSpinner animates frames followed by text on the current line
// until the returned stop function is called. The cursor is hidden meanwhile.
// Nothing is drawn when stdin is not a terminal, so piped output stays clean.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	if !terminal.IsInteractive() {
		return func() {}
	}
	cursor.Hide()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
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

// withSpinner runs fn while a spinner with text is shown on stderr.
func withSpinner[T any](text string, fn func() (T, error)) (T, error) {
	stop := startInlineSpinner(os.Stderr, text, spinnerFrames, 100*time.Millisecond)
	defer stop()
	return fn()
}
