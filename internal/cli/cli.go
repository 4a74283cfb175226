// Package cli defines the mcserver command tree.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/dominicfeliton/minecraft-server-script/internal/management"
)

const description = `Manage a Minecraft server (Paper, Velocity, Folia or Spigot) in a tmux session.

Without a command, mcserver toggles the server: it stops a running server
and starts a stopped one. Settings come from the environment, then the
first mcserver.conf found, then built-in defaults.`

// Globals holds flags shared by all subcommands.
type Globals struct {
	NoUpdate bool             `help:"Reuse existing artifacts instead of fetching updates."`
	Xms      string           `help:"Initial heap size (overrides MC_XMS)." placeholder:"SIZE"`
	Xmx      string           `help:"Maximum heap size (overrides MC_XMX)." placeholder:"SIZE"`
	JavaCmd  string           `help:"Java executable (overrides MC_JAVA_CMD)." placeholder:"PATH"`
	NoTmux   bool             `help:"Run in the foreground instead of a tmux session."`
	Debug    bool             `help:"Enable debug logging."`
	Version  kong.VersionFlag `help:"Print version." hidden:""`
}

// Target is the optional game version and build to deploy.
type Target struct {
	MCVersion   string `arg:"" optional:"" name:"mc_version" help:"Game version (default: recorded, else latest)."`
	BuildNumber string `arg:"" optional:"" name:"build_number" help:"Build number (Paper and Velocity only)."`
}

// Options merges the global flags with the positional target.
func (g *Globals) Options(t Target) management.Options {
	return management.Options{
		Version:  t.MCVersion,
		Build:    t.BuildNumber,
		NoUpdate: g.NoUpdate,
		Xms:      g.Xms,
		Xmx:      g.Xmx,
		JavaCmd:  g.JavaCmd,
		NoTmux:   g.NoTmux,
		Debug:    g.Debug,
	}
}

// CLI is the top-level command tree parsed by Kong.
type CLI struct {
	Globals

	Start   StartCmd   `cmd:"" help:"Deploy the server jar and start the server."`
	Stop    StopCmd    `cmd:"" help:"Gracefully stop the server."`
	Restart RestartCmd `cmd:"" help:"Stop the server, then start it again."`
	Toggle  ToggleCmd  `cmd:"" default:"withargs" help:"Stop a running server or start a stopped one."`
	Help    HelpCmd    `cmd:"" help:"Show usage."`
}

// NewParser builds the Kong parser for c. Help and usage go to w.
func NewParser(c *CLI, version string, w io.Writer, options ...kong.Option) (*kong.Kong, error) {
	opts := []kong.Option{
		kong.Name("mcserver"),
		kong.Description(description),
		kong.Writers(w, w),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	}
	return kong.New(c, append(opts, options...)...)
}

var commands = map[string]bool{"start": true, "stop": true, "restart": true, "toggle": true, "help": true}

// valueFlags take their value from the next argument when written
// without '='.
var valueFlags = map[string]bool{"--xms": true, "--xmx": true, "--java-cmd": true}

// CheckArgs rejects a first positional argument that is not a command.
// The default command accepts arguments, so without this check
// "mcserver 1.21.4" would silently toggle.
func CheckArgs(args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if strings.HasPrefix(arg, "-") {
			if valueFlags[arg] {
				i++
			}
			continue
		}
		if !commands[arg] {
			return fmt.Errorf("unknown command %q", arg)
		}
		return nil
	}
	return nil
}
