package management

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
	"github.com/dominicfeliton/minecraft-server-script/internal/server"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

// DefaultStopGrace is how long stop waits between the shutdown command
// and tearing the session down.
const DefaultStopGrace = 10 * time.Second

// FoliaMinJava is the lowest Java release Folia runs on.
const FoliaMinJava = 21

var (
	// ErrSessionRunning means start found a live session with the same name.
	ErrSessionRunning = errors.New("server session is already running")
	// ErrJarNotFound means no server jar was available at launch time.
	ErrJarNotFound = errors.New("server jar not found")
)

// Options are the per-invocation inputs given on the command line.
type Options struct {
	Version  string
	Build    string
	NoUpdate bool
	Xms      string
	Xmx      string
	JavaCmd  string
	NoTmux   bool
	Debug    bool
}

// Args reconstructs the command-line arguments that produce o.
func (o Options) Args() []string {
	var args []string
	if o.Version != "" {
		args = append(args, o.Version)
		if o.Build != "" {
			args = append(args, o.Build)
		}
	}
	if o.NoUpdate {
		args = append(args, "--no-update")
	}
	if o.Xms != "" {
		args = append(args, "--xms="+o.Xms)
	}
	if o.Xmx != "" {
		args = append(args, "--xmx="+o.Xmx)
	}
	if o.JavaCmd != "" {
		args = append(args, "--java-cmd="+o.JavaCmd)
	}
	if o.NoTmux {
		args = append(args, "--no-tmux")
	}
	if o.Debug {
		args = append(args, "--debug")
	}
	return args
}

// Controller drives the start/stop/restart/toggle state machine.
type Controller struct {
	Config   config.EffectiveConfig
	Runner   platform.CommandRunner
	Sessions SessionManager
	Handoff  platform.Handoff
	Provider server.Provider
	Guard    *Guard
	Output   *ui.UI

	// Self is the program restart hands off to.
	Self string
	// StopGrace overrides DefaultStopGrace when non-zero.
	StopGrace time.Duration
}

// useTmux reports whether the session multiplexer is enabled and installed.
func (c *Controller) useTmux(opts Options) bool {
	return !opts.NoTmux && c.Runner.CommandExists("tmux")
}

func (c *Controller) javaCmd(opts Options) string {
	if opts.JavaCmd != "" {
		return opts.JavaCmd
	}
	return c.Config.JavaCmd
}

// Toggle stops a live server and starts an absent one. Without tmux it
// always starts.
func (c *Controller) Toggle(ctx context.Context, opts Options) error {
	if !c.useTmux(opts) {
		return c.Start(ctx, opts)
	}
	if c.Sessions.Exists(ctx) {
		return c.Stop(ctx)
	}
	return c.Start(ctx, opts)
}

// Stop sends the shutdown command, waits out the grace period and kills
// the session. A missing session is not an error.
func (c *Controller) Stop(ctx context.Context) error {
	name := c.Sessions.Name()
	if !c.Sessions.Exists(ctx) {
		c.Output.Info("Server is not running (no session %q).", name)
		return nil
	}

	c.Output.Info("Sending %q to session %s...", stopCommand(c.Config.Flavor), name)
	if err := c.Sessions.SendKeys(ctx, stopCommand(c.Config.Flavor)); err != nil {
		return fmt.Errorf("sending shutdown command: %w", err)
	}

	grace := c.StopGrace
	if grace == 0 {
		grace = DefaultStopGrace
	}
	waitErr := c.Output.Wait(ctx, grace, "Waiting %s for the server to shut down", grace)

	// The shutdown command is already sent; tear down even when interrupted.
	teardown := context.WithoutCancel(ctx)
	if c.Sessions.Exists(teardown) {
		if err := c.Sessions.Kill(teardown); err != nil {
			return errors.Join(waitErr, fmt.Errorf("killing session %s: %w", name, err))
		}
	}
	if waitErr != nil {
		return waitErr
	}
	c.Output.Success("Server stopped.")
	return nil
}

func stopCommand(f config.Flavor) string {
	if f.IsProxy() {
		return "end"
	}
	return "stop"
}

// Restart stops the server whether or not it is running, then replaces
// this process with a start carrying the same options.
func (c *Controller) Restart(ctx context.Context, opts Options) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	argv := append([]string{c.Self, "start"}, opts.Args()...)
	zap.L().Debug("restart handoff", zap.Strings("argv", argv))
	c.Output.Info("Starting again...")
	return c.Handoff.Exec(argv, "")
}

// Start deploys the server jar and launches it, inside a tmux session
// when one is available and otherwise in place of this process.
func (c *Controller) Start(ctx context.Context, opts Options) error {
	cfg := c.Config
	tmux := c.useTmux(opts)
	if tmux && c.Sessions.Exists(ctx) {
		return fmt.Errorf("%w: session %q (attach with: tmux attach -t %s)", ErrSessionRunning, c.Sessions.Name(), c.Sessions.Name())
	}
	if !tmux && !opts.NoTmux {
		c.Output.Warn("tmux not found; running in the foreground")
	}

	javaCmd := c.javaCmd(opts)
	if err := platform.RequireTools(c.Runner, javaCmd); err != nil {
		return err
	}

	rel, err := c.Deploy(ctx, opts)
	if err != nil {
		return err
	}
	if rel.Path == "" {
		return fmt.Errorf("%w: no %s artifact was resolved", ErrJarNotFound, cfg.Flavor.Tag())
	}
	if _, err := os.Stat(rel.Path); err != nil {
		return fmt.Errorf("%w: %s", ErrJarNotFound, rel.Path)
	}

	major, known := platform.DetectJava(ctx, c.Runner, javaCmd)
	if !known {
		c.Output.Warn("Could not determine the Java version of %s; GC logging disabled", javaCmd)
	}
	if cfg.Flavor == config.FlavorFolia {
		if known && major < FoliaMinJava {
			return fmt.Errorf("folia requires Java %d or newer, %s is Java %d", FoliaMinJava, javaCmd, major)
		}
	}
	if known {
		if err := os.MkdirAll(filepath.Join(cfg.ServerDir, "logs"), 0o755); err != nil {
			return fmt.Errorf("creating logs directory: %w", err)
		}
	}

	argv := LaunchCommand(LaunchSpec{
		Flavor:    cfg.Flavor,
		JavaCmd:   javaCmd,
		Xms:       firstNonEmpty(opts.Xms, cfg.Xms),
		Xmx:       firstNonEmpty(opts.Xmx, cfg.Xmx),
		JarPath:   rel.Path,
		JavaMajor: major,
		JavaKnown: known,
	})
	zap.L().Debug("launch command", zap.Strings("argv", argv))

	if !tmux {
		c.Output.Info("Launching %s %s in the foreground...", cfg.Flavor.Tag(), rel.Version)
		return c.Handoff.Exec(argv, cfg.ServerDir)
	}

	if err := c.Sessions.Create(ctx, cfg.ServerDir, argv); err != nil {
		return fmt.Errorf("creating tmux session: %w", err)
	}
	c.Output.Success("%s %s started in tmux session %q", cfg.Flavor.Tag(), rel.Version, c.Sessions.Name())
	c.Output.Info("Attach with: tmux attach -t %s", c.Sessions.Name())
	c.printConnectionInfo(ctx)
	return nil
}

// Deploy resolves the release, runs the transition guard, provisions the
// jar and updates the version record and EULA.
func (c *Controller) Deploy(ctx context.Context, opts Options) (*server.Release, error) {
	cfg := c.Config

	var recorded string
	var hadRecord bool
	if cfg.Flavor.CarriesWorld() {
		v, ok, err := server.ReadVersionRecord(cfg.VersionFile())
		if err != nil {
			return nil, err
		}
		recorded, hadRecord = v, ok
	}

	autoUpdate := !opts.NoUpdate
	rel, err := c.Provider.Resolve(ctx, server.Request{
		Version:    opts.Version,
		Build:      opts.Build,
		AutoUpdate: autoUpdate,
		Recorded:   recorded,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.ServerDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating server directory: %w", err)
	}

	if rel.Path != "" && c.Guard != nil {
		if _, err := c.Guard.MaybeTransition(cfg.Flavor, recorded, rel.Version, hadRecord); err != nil {
			return nil, fmt.Errorf("version transition: %w", err)
		}
	}

	if err := c.Provider.Provision(ctx, rel, autoUpdate); err != nil {
		return nil, err
	}

	if rel.Path != "" && rel.Version != "" && cfg.Flavor.CarriesWorld() {
		if err := server.WriteVersionRecord(cfg.VersionFile(), rel.Version); err != nil {
			return nil, err
		}
	}

	if cfg.Flavor.CarriesWorld() {
		if err := c.ensureEULA(); err != nil {
			return nil, err
		}
	}
	return rel, nil
}

func (c *Controller) ensureEULA() error {
	dir := c.Config.ServerDir
	if !c.Config.EULAAutoAccept {
		if !server.EULAAccepted(dir) {
			c.Output.Warn("EULA not accepted; set eula=true in %s", filepath.Join(dir, server.EULAFile))
		}
		return nil
	}
	changed, err := server.EnsureEULA(dir)
	if err != nil {
		return err
	}
	if changed {
		c.Output.Info("Accepted the Minecraft EULA in %s", server.EULAFile)
	}
	return nil
}

// printConnectionInfo tells WSL users which address Windows can reach.
func (c *Controller) printConnectionInfo(ctx context.Context) {
	if !platform.IsWSL(ctx, c.Runner) {
		return
	}
	addr := platform.LocalAddress(ctx, c.Runner)
	if addr == "" {
		return
	}
	port := 25565
	if c.Config.Flavor.IsProxy() {
		port = 25577
	}
	c.Output.Info("Running under WSL; connect from Windows at %s:%d", addr, port)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
