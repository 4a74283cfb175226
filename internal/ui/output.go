package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// UI provides colored terminal output for user-facing messages.
type UI struct {
	out   io.Writer
	err   io.Writer
	in    *bufio.Reader
	color bool
	tag   string

	// interactive is true when the input is a terminal an operator can answer.
	interactive bool
}

var (
	defaultUI   *UI
	defaultOnce sync.Once
)

// Default returns a shared UI instance with auto-detected color support.
func Default() *UI {
	defaultOnce.Do(func() {
		defaultUI = &UI{
			out:         os.Stdout,
			err:         os.Stderr,
			in:          bufio.NewReader(os.Stdin),
			color:       shouldColor(),
			interactive: term.IsTerminal(int(os.Stdin.Fd())),
		}
	})
	return defaultUI
}

// New creates a UI on stdout/stderr with explicit color control.
func New(color bool) *UI {
	return &UI{out: os.Stdout, err: os.Stderr, in: bufio.NewReader(os.Stdin), color: color}
}

// NewWriter creates a UI that writes everything to w and reads answers
// from in (which may be nil). Used by tests.
func NewWriter(w io.Writer, in io.Reader) *UI {
	u := &UI{out: w, err: w}
	if in != nil {
		u.in = bufio.NewReader(in)
		u.interactive = true
	}
	return u
}

func shouldColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Tagged returns a copy of u whose messages are prefixed with [tag].
func (u *UI) Tagged(tag string) *UI {
	c := *u
	c.tag = tag
	return &c
}

// IsTerminal reports whether output is going to a color-capable terminal.
func (u *UI) IsTerminal() bool {
	return u.color
}

// Writer returns the stream user-facing output is written to.
func (u *UI) Writer() io.Writer {
	return u.out
}

func (u *UI) paint(attrs []color.Attribute, s string) string {
	if !u.color {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func (u *UI) line(w io.Writer, label string, attrs []color.Attribute, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if u.tag != "" {
		msg = "[" + u.tag + "] " + msg
	}
	fmt.Fprintln(w, u.paint(attrs, label)+" "+msg)
}

// Info prints an informational message.
func (u *UI) Info(format string, args ...any) {
	u.line(u.out, "[INFO]", []color.Attribute{color.FgBlue}, format, args...)
}

// Success prints a success message.
func (u *UI) Success(format string, args ...any) {
	u.line(u.out, "[OK]", []color.Attribute{color.FgGreen}, format, args...)
}

// Warn prints a warning message.
func (u *UI) Warn(format string, args ...any) {
	u.line(u.out, "[WARN]", []color.Attribute{color.FgYellow, color.Bold}, format, args...)
}

// Error prints an error message to stderr.
func (u *UI) Error(format string, args ...any) {
	u.line(u.err, "[ERROR]", []color.Attribute{color.FgRed}, format, args...)
}

// Step prints a section header.
func (u *UI) Step(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	header := fmt.Sprintf("\n━━━ %s ━━━\n", msg)
	fmt.Fprintln(u.out, u.paint([]color.Attribute{color.FgCyan, color.Bold}, header))
}

// Bold returns text wrapped in bold codes (if color enabled).
func (u *UI) Bold(s string) string {
	return u.paint([]color.Attribute{color.Bold}, s)
}

// Confirm asks a yes/no question and reports whether the answer was yes.
// The default is no; without an interactive input it always answers no.
func (u *UI) Confirm(format string, args ...any) bool {
	if u.in == nil || !u.interactive {
		return false
	}
	prompt := fmt.Sprintf(format, args...)
	if u.tag != "" {
		prompt = "[" + u.tag + "] " + prompt
	}
	fmt.Fprint(u.out, u.paint([]color.Attribute{color.FgYellow, color.Bold}, "[?]")+" "+prompt+" [y/N] ")
	answer, err := u.in.ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(u.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
