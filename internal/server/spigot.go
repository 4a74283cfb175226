package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

const (
	// BuildToolsURL is where SpigotMC publishes the BuildTools launcher.
	BuildToolsURL = "https://hub.spigotmc.org/jenkins/job/BuildTools/lastSuccessfulBuild/artifact/target/BuildTools.jar"
	// DefaultSpigotVersion is built when neither the operator nor the
	// version record names a version.
	DefaultSpigotVersion = "1.21.4"

	buildToolsJar = "BuildTools.jar"
)

// buildToolsWorkDirs are left behind by earlier BuildTools runs.
var buildToolsWorkDirs = []string{"work", "BuildData", "Bukkit", "CraftBukkit", "Spigot"}

// SpigotProvider compiles Spigot locally with BuildTools.
type SpigotProvider struct {
	serverDir     string
	buildDir      string
	javaCmd       string
	buildToolsURL string
	runner        platform.CommandRunner
	client        *APIClient
	output        *ui.UI
}

// Resolve picks the Spigot version. Build numbers do not apply.
func (p *SpigotProvider) Resolve(_ context.Context, req Request) (*Release, error) {
	version := req.Version
	if version == "" {
		version = req.Recorded
	}
	if version == "" {
		version = DefaultSpigotVersion
	}
	if req.Build != "" {
		p.output.Warn("Ignoring build number %s: Spigot is built from source", req.Build)
	}
	name := SpigotJarName(version)
	p.output.Info("Target version: %s", version)
	return &Release{
		Flavor:  config.FlavorSpigot,
		Version: version,
		JarName: name,
		Path:    filepath.Join(p.serverDir, name),
		Source:  p.buildToolsURL,
	}, nil
}

// SpigotJarName is the file BuildTools produces for version.
func SpigotJarName(version string) string {
	return "spigot-" + version + ".jar"
}

// Provision reuses an existing jar unless auto-update is on; otherwise it
// runs BuildTools and copies the result into the server directory.
func (p *SpigotProvider) Provision(ctx context.Context, rel *Release, autoUpdate bool) error {
	if _, err := os.Stat(rel.Path); err == nil && !autoUpdate {
		p.output.Info("Using existing %s (auto-update disabled)", rel.JarName)
		return nil
	}

	if err := os.MkdirAll(p.buildDir, 0o755); err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	if err := p.ensureBuildTools(ctx, autoUpdate); err != nil {
		return err
	}
	if err := p.cleanWorkDirs(); err != nil {
		return err
	}

	p.output.Info("Running BuildTools for %s (this can take a while)...", rel.Version)
	if err := p.runner.RunAttached(ctx, p.buildDir, p.javaCmd, "-jar", buildToolsJar, "--rev", rel.Version); err != nil {
		return &BuildError{Step: "BuildTools", Err: err}
	}

	built := filepath.Join(p.buildDir, rel.JarName)
	if _, err := os.Stat(built); err != nil {
		return &BuildError{Step: "BuildTools", Err: fmt.Errorf("expected output %s: %w", built, err)}
	}
	if err := os.MkdirAll(p.serverDir, 0o755); err != nil {
		return fmt.Errorf("creating server directory: %w", err)
	}
	if err := copyFile(built, rel.Path); err != nil {
		return fmt.Errorf("installing %s: %w", rel.JarName, err)
	}
	p.output.Success("Built %s", rel.JarName)
	return nil
}

func (p *SpigotProvider) ensureBuildTools(ctx context.Context, autoUpdate bool) error {
	path := filepath.Join(p.buildDir, buildToolsJar)
	if _, err := os.Stat(path); err == nil && !autoUpdate {
		return nil
	}
	p.output.Info("Downloading BuildTools...")
	if err := p.client.Download(ctx, p.buildToolsURL, path); err != nil {
		return &BuildError{Step: "downloading BuildTools", Err: err}
	}
	return nil
}

// cleanWorkDirs removes state from earlier BuildTools runs so every build
// starts from a clean working directory.
func (p *SpigotProvider) cleanWorkDirs() error {
	entries, err := os.ReadDir(p.buildDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", p.buildDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || !isBuildToolsWorkDir(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.buildDir, e.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", e.Name(), err)
		}
	}
	return nil
}

func isBuildToolsWorkDir(name string) bool {
	if strings.HasPrefix(name, "apache-maven-") {
		return true
	}
	for _, d := range buildToolsWorkDirs {
		if name == d {
			return true
		}
	}
	return false
}
