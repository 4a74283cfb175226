// Package server acquires or builds the server jar for each flavor and
// owns the on-disk deployment state (version record, EULA).
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/container"
	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

var (
	// ErrNoVersion means no game version could be determined upstream.
	ErrNoVersion = errors.New("no version available")
	// ErrNoMatchingBuild means the upstream build list had nothing usable.
	ErrNoMatchingBuild = errors.New("no matching build")
)

// BuildError is a fatal failure of an external build step.
type BuildError struct {
	Step string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Request carries the operator's explicit inputs for one deploy.
type Request struct {
	Version    string
	Build      string
	AutoUpdate bool

	// Recorded is the last deployed version, empty when there is none.
	Recorded string
}

// Release describes the artifact chosen for this invocation.
type Release struct {
	Flavor  config.Flavor
	Version string
	Build   string
	JarName string
	// Path is empty when the artifact could not be resolved.
	Path   string
	Source string

	rebuild bool
}

// Provider resolves and materializes the server jar for one flavor.
// Resolve picks the version and build (and syncs sources where that is
// needed to know them); Provision leaves a usable jar at Release.Path.
type Provider interface {
	Resolve(ctx context.Context, req Request) (*Release, error)
	Provision(ctx context.Context, rel *Release, autoUpdate bool) error
}

// Deps are the collaborators providers share.
type Deps struct {
	Runner platform.CommandRunner
	Output *ui.UI
	HTTP   *http.Client
	Engine *container.Engine
}

// NewProvider returns the provider for cfg.Flavor.
func NewProvider(cfg config.EffectiveConfig, deps Deps) (Provider, error) {
	out := deps.Output.Tagged(cfg.Flavor.Tag())
	client := NewAPIClient(cfg.PaperAPI, deps.HTTP, out)

	switch cfg.Flavor {
	case config.FlavorPaper, config.FlavorVelocity:
		return &HTTPProvider{
			project:   string(cfg.Flavor),
			flavor:    cfg.Flavor,
			serverDir: cfg.ServerDir,
			client:    client,
			output:    out,
		}, nil
	case config.FlavorSpigot:
		return &SpigotProvider{
			serverDir:     cfg.ServerDir,
			buildDir:      cfg.SpigotBuildDir,
			javaCmd:       cfg.JavaCmd,
			buildToolsURL: BuildToolsURL,
			runner:        deps.Runner,
			client:        client,
			output:        out,
		}, nil
	case config.FlavorFolia:
		engine := deps.Engine
		if engine == nil {
			engine = container.NewEngine(deps.Runner, container.DefaultRuntime)
		}
		return &FoliaProvider{
			serverDir: cfg.ServerDir,
			srcDir:    cfg.FoliaSrcDir,
			dockerDir: cfg.FoliaDockerDir,
			gitURL:    cfg.FoliaGitURL,
			branch:    cfg.FoliaBranch,
			runner:    deps.Runner,
			engine:    engine,
			output:    out,
		}, nil
	default:
		return nil, fmt.Errorf("no provider for flavor %q", cfg.Flavor)
	}
}
