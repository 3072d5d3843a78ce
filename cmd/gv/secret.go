package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readSecret returns flagVal when set, otherwise prompts on a terminal
// without echo or reads one line from a.in.
func (a *app) readSecret(prompt, flagVal string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if a.interactive != nil && a.interactive() {
		fmt.Fprint(a.errOut, prompt)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return string(b), nil
	}
	if a.lines == nil {
		a.lines = bufio.NewReader(a.in)
	}
	line, err := a.lines.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" && err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return line, nil
}
