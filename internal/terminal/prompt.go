// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when input ends before an answer is given.
var ErrNoInput = errors.New("no input")

// Prompter asks the user for values. Passwords are read without echo when
// the input is a terminal.
type Prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

// NewPrompter reads from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, reader: bufio.NewReader(in)}
}

// Stdio returns a prompter over the process's stdin and stderr.
func Stdio() *Prompter {
	return NewPrompter(os.Stdin, os.Stderr)
}

// IsInteractive reports whether the prompter reads from a terminal.
func (p *Prompter) IsInteractive() bool {
	return IsTerminal(p.in)
}

// Line prints label and returns the trimmed line typed by the user.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	return p.readLine()
}

// Password prints label and reads a secret without echo.
func (p *Prompter) Password(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	// Piped input: passwords may legitimately contain surrounding spaces.
	line, err := p.reader.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", err
	}
	return line, nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", err
	}
	return line, nil
}
