package management

import "context"

// SessionManager is the terminal multiplexer abstraction the lifecycle
// controller drives. Session existence is the only liveness signal.
type SessionManager interface {
	// Exists reports whether the named session is live.
	Exists(ctx context.Context) bool

	// Create starts argv inside a new detached session with dir as its
	// working directory.
	Create(ctx context.Context, dir string, argv []string) error

	// SendKeys types text into the session followed by Enter.
	SendKeys(ctx context.Context, text string) error

	// Kill tears the session down.
	Kill(ctx context.Context) error

	// Name returns the session name.
	Name() string
}
