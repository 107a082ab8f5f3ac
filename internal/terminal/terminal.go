// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal holds small helpers for interactive CLI input.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Width returns the terminal width, or 80 when it cannot be determined.
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// ReadLine prints prompt and reads one line from r, without the newline.
func ReadLine(r *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadPassword prints prompt and reads a line without echo. The prompt line
// is cleared afterwards so nothing about the secret stays on screen.
func ReadPassword(prompt string) (string, error) {
	if !IsInteractive() {
		return "", errors.New("password prompt needs an interactive terminal")
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	ClearPreviousLines(len(prompt))
	return string(b), nil
}

// ClearPreviousLines erases the last printed text of textLength characters,
// including the empty line left by Enter.
func ClearPreviousLines(textLength int) {
	lines := int(math.Ceil(float64(textLength) / float64(Width())))
	if lines < 1 {
		lines = 1
	}
	lines++

	for i := 0; i < lines; i++ {
		fmt.Print("\r\x1b[2K")
		if i < lines-1 {
			fmt.Print("\x1b[1A")
		}
	}
}
