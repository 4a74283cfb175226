package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/dominicfeliton/minecraft-server-script/internal/cli"
	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/logging"
	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	output := ui.Default()

	var root cli.CLI
	parser, err := cli.NewParser(&root, version+" ("+commit+")", output.Writer())
	if err != nil {
		output.Error("%v", err)
		return 1
	}

	if err := cli.CheckArgs(args); err != nil {
		return usageError(parser, output, err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return usageError(parser, output, err)
	}

	env := config.Env(os.LookupEnv)
	cfg, err := config.Resolve(env, config.DefaultCandidates(config.ServerDirHint(env)))
	if err != nil {
		output.Error("%v", err)
		return 1
	}

	logger := logging.New(cfg.LogLevel, root.Debug)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	zap.L().Debug("config resolved",
		zap.String("flavor", string(cfg.Flavor)),
		zap.String("server_dir", cfg.ServerDir),
		zap.String("source", cfg.Source))
	for _, w := range cfg.Warnings {
		zap.L().Warn("config: " + w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}

	app := &cli.App{
		Ctx:     ctx,
		Config:  cfg,
		Runner:  platform.NewOSCommandRunner(),
		Handoff: platform.NewOSHandoff(),
		Output:  output,
		Self:    self,
	}
	if err := kctx.Run(&root.Globals, app); err != nil {
		if errors.Is(err, context.Canceled) {
			output.Warn("Interrupted")
		} else {
			output.Error("%v", err)
		}
		return 1
	}
	return 0
}

func usageError(parser *kong.Kong, output *ui.UI, err error) int {
	output.Error("%v", err)
	if ctx, traceErr := kong.Trace(parser, nil); traceErr == nil {
		_ = ctx.PrintUsage(true)
	}
	return 1
}
