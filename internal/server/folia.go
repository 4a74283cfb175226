package server

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/container"
	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

const (
	// FoliaJarName is the canonical artifact name in the server directory.
	FoliaJarName = "folia.jar"
	// FoliaImage is the tag of the build image.
	FoliaImage = "mcserver-folia-build"

	foliaOutDir    = "/out"
	foliaContainer = "mcserver-folia-extract"
)

// foliaJarPatterns are tried in order; the first pattern with a match
// decides which jar is installed.
var foliaJarPatterns = []string{
	"**/folia-bundler-*-mojmap.jar",
	"**/*-bundler-*-mojmap.jar",
	"**/*-mojmap.jar",
	"**/folia-bundler-*.jar",
	"**/folia-*.jar",
	"**/*.jar",
}

const foliaDockerfile = `FROM eclipse-temurin:21-jdk
RUN apt-get update \
 && apt-get install -y --no-install-recommends git \
 && rm -rf /var/lib/apt/lists/*
WORKDIR /src
COPY . .
RUN git config --global user.email "build@localhost" \
 && git config --global user.name "mcserver build" \
 && ./gradlew applyPatches --no-daemon \
 && ./gradlew createMojmapBundlerJar --no-daemon
RUN mkdir -p ` + foliaOutDir + ` \
 && find . -path '*/build/libs/*.jar' -exec cp {} ` + foliaOutDir + `/ \;
`

// FoliaProvider builds Folia from a local git mirror inside a container.
type FoliaProvider struct {
	serverDir string
	srcDir    string
	dockerDir string
	gitURL    string
	branch    string
	runner    platform.CommandRunner
	engine    *container.Engine
	output    *ui.UI
}

// Resolve syncs the source mirror and decides whether a rebuild is needed.
func (p *FoliaProvider) Resolve(ctx context.Context, req Request) (*Release, error) {
	if err := platform.RequireTools(p.runner, "git"); err != nil {
		return nil, err
	}
	if err := p.engine.Usable(ctx); err != nil {
		return nil, err
	}

	if err := p.ensureClone(ctx); err != nil {
		return nil, err
	}
	if err := p.git(ctx, "fetch", "origin", p.branch); err != nil {
		return nil, &BuildError{Step: "git fetch", Err: err}
	}
	local, err := p.revParse(ctx, "HEAD")
	if err != nil {
		return nil, err
	}
	remote, err := p.revParse(ctx, "origin/"+p.branch)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(p.serverDir, FoliaJarName)
	_, statErr := os.Stat(path)
	artifactExists := statErr == nil

	var rebuild bool
	switch {
	case !req.AutoUpdate:
		rebuild = !artifactExists
	case local != remote:
		p.output.Info("Upstream changed (%s -> %s), pulling", short(local), short(remote))
		if err := p.git(ctx, "pull", "--rebase", "origin", p.branch); err != nil {
			return nil, &BuildError{Step: "git pull", Err: err}
		}
		if local, err = p.revParse(ctx, "HEAD"); err != nil {
			return nil, err
		}
		rebuild = true
	default:
		rebuild = !artifactExists
	}

	version := req.Version
	if version == "" {
		version = readGradleProperty(filepath.Join(p.srcDir, "gradle.properties"), "mcVersion")
	}
	if version == "" {
		version = req.Recorded
	}
	if req.Build != "" {
		p.output.Warn("Ignoring build number %s: Folia is built from %s", req.Build, p.branch)
	}
	p.output.Info("Target version: %s (commit %s)", version, short(local))

	return &Release{
		Flavor:  config.FlavorFolia,
		Version: version,
		Build:   short(local),
		JarName: FoliaJarName,
		Path:    path,
		Source:  p.gitURL + "#" + p.branch,
		rebuild: rebuild,
	}, nil
}

// Provision builds the jar when Resolve decided it is needed.
func (p *FoliaProvider) Provision(ctx context.Context, rel *Release, _ bool) error {
	if !rel.rebuild {
		p.output.Info("Using existing %s", rel.JarName)
		return nil
	}
	return p.build(ctx, rel)
}

func (p *FoliaProvider) ensureClone(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(p.srcDir, ".git")); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.srcDir), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(p.srcDir), err)
	}
	p.output.Info("Cloning %s (%s)...", p.gitURL, p.branch)
	if err := p.runner.RunAttached(ctx, "", "git", "clone", "--branch", p.branch, p.gitURL, p.srcDir); err != nil {
		return &BuildError{Step: "git clone", Err: err}
	}
	return nil
}

func (p *FoliaProvider) git(ctx context.Context, args ...string) error {
	return p.runner.Run(ctx, "git", append([]string{"-C", p.srcDir}, args...)...)
}

func (p *FoliaProvider) revParse(ctx context.Context, ref string) (string, error) {
	out, err := p.runner.RunWithOutput(ctx, "git", "-C", p.srcDir, "rev-parse", ref)
	if err != nil {
		return "", &BuildError{Step: "git rev-parse " + ref, Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// build mirrors the sources into a separate context, builds the image and
// extracts the jar from a created (never started) container. The
// container and the staging directory are removed on every path.
func (p *FoliaProvider) build(ctx context.Context, rel *Release) error {
	contextDir := filepath.Join(p.dockerDir, "context")
	p.output.Info("Preparing build context in %s", contextDir)
	if err := os.MkdirAll(p.dockerDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", p.dockerDir, err)
	}
	if err := mirrorTree(p.srcDir, contextDir); err != nil {
		return fmt.Errorf("mirroring sources: %w", err)
	}
	if err := os.WriteFile(filepath.Join(contextDir, "Dockerfile"), []byte(foliaDockerfile), 0o644); err != nil {
		return fmt.Errorf("writing Dockerfile: %w", err)
	}

	p.output.Info("Building image %s (this can take a while)...", FoliaImage)
	if err := p.engine.Build(ctx, FoliaImage, contextDir); err != nil {
		return &BuildError{Step: "image build", Err: err}
	}

	if p.engine.Exists(ctx, foliaContainer) {
		p.output.Info("Removing stale container %s", foliaContainer)
		if err := p.engine.Remove(ctx, foliaContainer); err != nil {
			return &BuildError{Step: "removing stale container", Err: err}
		}
	}
	id, err := p.engine.Create(ctx, FoliaImage, foliaContainer)
	if err != nil {
		return &BuildError{Step: "container create", Err: err}
	}
	staging := filepath.Join(p.dockerDir, "out")
	defer func() {
		if rmErr := p.engine.Remove(context.WithoutCancel(ctx), id); rmErr != nil {
			p.output.Warn("Could not remove container %s: %v", foliaContainer, rmErr)
		}
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			p.output.Warn("Could not remove %s: %v", staging, rmErr)
		}
	}()

	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clearing %s: %w", staging, err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", staging, err)
	}
	if err := p.engine.CopyFrom(ctx, id, foliaOutDir+"/.", staging); err != nil {
		return &BuildError{Step: "extracting build output", Err: err}
	}

	jar, err := findJar(staging)
	if err != nil {
		return &BuildError{Step: "locating jar", Err: err}
	}
	zap.L().Debug("folia jar selected", zap.String("jar", jar))

	if err := os.MkdirAll(p.serverDir, 0o755); err != nil {
		return fmt.Errorf("creating server directory: %w", err)
	}
	if err := copyFile(jar, rel.Path); err != nil {
		return fmt.Errorf("installing %s: %w", rel.JarName, err)
	}
	p.output.Success("Built %s from %s", rel.JarName, filepath.Base(jar))
	return nil
}

// findJar returns the best jar under dir according to foliaJarPatterns.
func findJar(dir string) (string, error) {
	fsys := os.DirFS(dir)
	for _, pattern := range foliaJarPatterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return filepath.Join(dir, filepath.FromSlash(matches[0])), nil
	}
	return "", fmt.Errorf("no jar found in build output")
}

// readGradleProperty returns key from a gradle.properties file, or "".
func readGradleProperty(path, key string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if ok && strings.TrimSpace(k) == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func short(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}
