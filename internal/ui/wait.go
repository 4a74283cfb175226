package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
)

// Wait blocks for d while showing a spinner with the given message on a
// terminal. It returns early with the context's error when cancelled.
func (u *UI) Wait(ctx context.Context, d time.Duration, format string, args ...any) error {
	if u.IsTerminal() {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(u.out))
		msg := fmt.Sprintf(format, args...)
		if u.tag != "" {
			msg = "[" + u.tag + "] " + msg
		}
		s.Suffix = " " + msg
		s.Start()
		defer s.Stop()
	} else {
		u.Info(format, args...)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
