package ui

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptPassword reads a password from the terminal without echoing it.
// Falls back to a plain line read when stdin is not a terminal (pipes,
// CI), since disabling echo is impossible there anyway.
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("cannot read password: %w", err)
		}
		return string(raw), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("cannot read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
