// Package ux holds the interactive terminal surface. The one prompt
// the tool has is modeled as a capability the orchestration layer can
// stub out entirely, so tests inject a pre-decided answer instead of
// reading a real keyboard.
package ux

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Prompter answers a yes/no question.
type Prompter interface {
	// Confirm asks question and returns the answer, or def when no
	// answer arrives in time.
	Confirm(ctx context.Context, question string, def bool) bool
}

// ConsolePrompter reads the answer from a terminal, bounded by a
// deadline that falls back to the default answer. A prompt must never
// hang a deployment run.
type ConsolePrompter struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration
}

// Confirm prints the question with a [y/N]-style suffix and waits for
// one line of input. Deadline expiry or context cancellation yields
// the default.
func (p *ConsolePrompter) Confirm(ctx context.Context, question string, def bool) bool {
	suffix := "[y/N]"
	if def {
		suffix = "[Y/n]"
	}
	fmt.Fprintf(p.Out, "%s %s (auto-%s in %s): ", question, suffix, answerWord(def), p.Timeout)

	lines := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && line == "" {
			return
		}
		lines <- line
	}()

	timer := time.NewTimer(p.Timeout)
	defer timer.Stop()

	select {
	case line := <-lines:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			return def
		}
	case <-timer.C:
		fmt.Fprintf(p.Out, "\nno answer, defaulting to %s\n", answerWord(def))
		return def
	case <-ctx.Done():
		return def
	}
}

func answerWord(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// StaticPrompter always answers the same thing. Used in tests and for
// non-interactive runs.
type StaticPrompter struct {
	Answer bool
}

func (p StaticPrompter) Confirm(context.Context, string, bool) bool { return p.Answer }
