package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type checkState int

const (
	checkOK checkState = iota
	checkWarn
	checkFail
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const checkLabelWidth = 22

// checkLine renders "  Label:   [OK] detail", colored when writing to a terminal.
func checkLine(label string, state checkState, detail string, colorize bool) string {
	marker := "[" + state.String() + "]"
	if detail = strings.TrimSpace(detail); detail != "" {
		marker += " " + detail
	}
	line := fmt.Sprintf("  %-*s %s", checkLabelWidth, label+":", marker)
	if colorize {
		return state.color() + line + ansiReset
	}
	return line
}

func (s checkState) String() string {
	switch s {
	case checkOK:
		return "OK"
	case checkWarn:
		return "WARN"
	default:
		return "FAIL"
	}
}

func (s checkState) color() string {
	switch s {
	case checkOK:
		return ansiGreen
	case checkWarn:
		return ansiYellow
	default:
		return ansiRed
	}
}

func sectionHeader(title string, colorize bool) string {
	line := "== " + strings.TrimSpace(title) + " =="
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
