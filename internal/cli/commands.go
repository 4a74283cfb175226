package cli

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/container"
	"github.com/dominicfeliton/minecraft-server-script/internal/management"
	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
	"github.com/dominicfeliton/minecraft-server-script/internal/server"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

// App carries the collaborators every command runs against.
type App struct {
	Ctx     context.Context
	Config  config.EffectiveConfig
	Runner  platform.CommandRunner
	Handoff platform.Handoff
	Output  *ui.UI
	HTTP    *http.Client

	// Self is this program's path, used for restart.
	Self string
	// StopGrace overrides the default stop grace period when non-zero.
	StopGrace time.Duration
}

// Controller assembles the lifecycle controller for opts.
func (a *App) Controller(opts management.Options) (*management.Controller, error) {
	cfg := a.Config
	if opts.JavaCmd != "" {
		cfg.JavaCmd = opts.JavaCmd
	}

	provider, err := server.NewProvider(cfg, server.Deps{
		Runner: a.Runner,
		Output: a.Output,
		HTTP:   a.HTTP,
		Engine: container.NewEngine(a.Runner, container.DefaultRuntime),
	})
	if err != nil {
		return nil, err
	}

	return &management.Controller{
		Config:    cfg,
		Runner:    a.Runner,
		Sessions:  management.NewTmuxManager(a.Runner, cfg.Session),
		Handoff:   a.Handoff,
		Provider:  provider,
		Guard:     management.NewGuard(cfg, filepath.Base(a.Self), a.Output.Tagged("Backup")),
		Output:    a.Output.Tagged(cfg.Flavor.Tag()),
		Self:      a.Self,
		StopGrace: a.StopGrace,
	}, nil
}

// StartCmd deploys and starts the server.
type StartCmd struct {
	Target
}

// Run starts the server.
func (cmd *StartCmd) Run(globals *Globals, app *App) error {
	opts := globals.Options(cmd.Target)
	c, err := app.Controller(opts)
	if err != nil {
		return err
	}
	return c.Start(app.Ctx, opts)
}

// StopCmd gracefully stops the server.
type StopCmd struct {
	Target
}

// Run stops the server. Positional arguments are accepted and ignored.
func (cmd *StopCmd) Run(globals *Globals, app *App) error {
	c, err := app.Controller(globals.Options(cmd.Target))
	if err != nil {
		return err
	}
	return c.Stop(app.Ctx)
}

// RestartCmd stops the server and starts it again in a new process.
type RestartCmd struct {
	Target
}

// Run restarts the server.
func (cmd *RestartCmd) Run(globals *Globals, app *App) error {
	opts := globals.Options(cmd.Target)
	c, err := app.Controller(opts)
	if err != nil {
		return err
	}
	return c.Restart(app.Ctx, opts)
}

// ToggleCmd stops a running server or starts a stopped one.
type ToggleCmd struct {
	Target
}

// Run toggles the server.
func (cmd *ToggleCmd) Run(globals *Globals, app *App) error {
	opts := globals.Options(cmd.Target)
	c, err := app.Controller(opts)
	if err != nil {
		return err
	}
	return c.Toggle(app.Ctx, opts)
}

// HelpCmd prints usage.
type HelpCmd struct {
	Command []string `arg:"" optional:"" help:"Show help for this command."`
}

// Run prints usage for the root or the named command.
func (cmd *HelpCmd) Run(kctx *kong.Context) error {
	ctx, err := kong.Trace(kctx.Kong, cmd.Command)
	if err != nil {
		return err
	}
	if ctx.Error != nil {
		return ctx.Error
	}
	return ctx.PrintUsage(false)
}
