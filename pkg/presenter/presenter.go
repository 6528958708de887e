// Package presenter provides consistent CLI output for user-facing
// messages, kept separate from structured logging so quiet mode and
// color handling never leak into logs.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Presenter renders user-facing CLI output.
type Presenter struct {
	out   io.Writer
	errW  io.Writer
	quiet bool
}

// New creates a Presenter writing to stdout/stderr, honoring NO_COLOR
// and SKILLET_COLOR.
func New() *Presenter {
	configureColor()
	return &Presenter{out: os.Stdout, errW: os.Stderr}
}

// NewWithWriters creates a Presenter with custom writers, used by tests.
func NewWithWriters(out, errW io.Writer) *Presenter {
	return &Presenter{out: out, errW: errW}
}

func configureColor() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
		return
	}
	switch os.Getenv("SKILLET_COLOR") {
	case "always", "force":
		color.NoColor = false
	case "never", "off":
		color.NoColor = true
	}
}

// SetQuiet suppresses everything except errors.
func (p *Presenter) SetQuiet(quiet bool) { p.quiet = quiet }

// Error writes an error message to stderr. Never suppressed.
func (p *Presenter) Error(err error, context string) {
	if err == nil {
		return
	}
	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errW, "[ERROR] %s: %v\n", context, err)
		return
	}
	c.Fprintf(p.errW, "[ERROR] %v\n", err)
}

// Success writes a success message.
func (p *Presenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.out, "✓ %s\n", message)
}

// Warning writes a warning message.
func (p *Presenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.out, "⚠ %s\n", message)
}

// Info writes a plain informational line.
func (p *Presenter) Info(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Section writes an underlined section header.
func (p *Presenter) Section(title string) {
	if p.quiet {
		return
	}
	c := color.New(color.Bold)
	c.Fprintf(p.out, "%s\n", title)
	c.Fprintf(p.out, "%s\n", strings.Repeat("-", len(title)))
}
