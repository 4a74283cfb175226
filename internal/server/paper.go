package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

// StableChannel is the channel the PaperMC API assigns to production builds.
const StableChannel = "default"

type projectResponse struct {
	Versions []string `json:"versions"`
}

type paperBuild struct {
	Build     int    `json:"build"`
	Channel   string `json:"channel"`
	Downloads struct {
		Application struct {
			Name   string `json:"name"`
			Sha256 string `json:"sha256"`
		} `json:"application"`
	} `json:"downloads"`
}

type buildsResponse struct {
	Builds []paperBuild `json:"builds"`
}

// LatestVersion returns the newest version listed for project.
func (c *APIClient) LatestVersion(ctx context.Context, project string) (string, error) {
	var resp projectResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/projects/%s", c.base, project), &resp); err != nil {
		return "", fmt.Errorf("fetching %s versions: %w", project, err)
	}
	if len(resp.Versions) == 0 {
		return "", fmt.Errorf("%s: %w", project, ErrNoVersion)
	}
	return resp.Versions[len(resp.Versions)-1], nil
}

// Builds returns every build of project for version, oldest first.
func (c *APIClient) Builds(ctx context.Context, project, version string) ([]paperBuild, error) {
	var resp buildsResponse
	url := fmt.Sprintf("%s/projects/%s/versions/%s/builds", c.base, project, version)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("fetching %s %s builds: %w", project, version, err)
	}
	return resp.Builds, nil
}

// DownloadURL is the artifact URL for one build.
func (c *APIClient) DownloadURL(project, version string, build int, name string) string {
	return fmt.Sprintf("%s/projects/%s/versions/%s/builds/%d/downloads/%s", c.base, project, version, build, name)
}

// selectBuild picks the build to deploy. With an explicit build number
// only an exact match is accepted. Otherwise the newest stable build wins,
// falling back to the newest build of any channel.
func selectBuild(builds []paperBuild, explicit string) (paperBuild, bool, error) {
	if explicit != "" {
		n, err := strconv.Atoi(explicit)
		if err != nil {
			return paperBuild{}, false, fmt.Errorf("build %q is not a number: %w", explicit, ErrNoMatchingBuild)
		}
		for _, b := range builds {
			if b.Build == n {
				return b, true, nil
			}
		}
		return paperBuild{}, false, fmt.Errorf("build %d: %w", n, ErrNoMatchingBuild)
	}

	for i := len(builds) - 1; i >= 0; i-- {
		if builds[i].Channel == StableChannel {
			return builds[i], true, nil
		}
	}
	if len(builds) == 0 {
		return paperBuild{}, false, ErrNoMatchingBuild
	}
	return builds[len(builds)-1], false, nil
}

// HTTPProvider downloads prebuilt jars for Paper and Velocity.
type HTTPProvider struct {
	project   string
	flavor    config.Flavor
	serverDir string
	client    *APIClient
	output    *ui.UI
}

// Resolve picks the version and build. Upstream gaps are reported as a
// warning and an empty Release.Path rather than an error; the launch step
// then fails because no jar is present.
func (p *HTTPProvider) Resolve(ctx context.Context, req Request) (*Release, error) {
	rel := &Release{Flavor: p.flavor}

	version := req.Version
	if version == "" {
		version = req.Recorded
	}
	if version == "" {
		latest, err := p.client.LatestVersion(ctx, p.project)
		if err != nil {
			return p.unresolved(ctx, rel, err)
		}
		version = latest
	}
	rel.Version = version
	p.output.Info("Target version: %s", version)

	builds, err := p.client.Builds(ctx, p.project, version)
	if err != nil {
		return p.unresolved(ctx, rel, err)
	}
	build, stable, err := selectBuild(builds, req.Build)
	if err != nil {
		return p.unresolved(ctx, rel, fmt.Errorf("%s %s: %w", p.project, version, err))
	}
	if req.Build == "" && !stable {
		p.output.Warn("No stable build for %s; using newest %s build %d", version, build.Channel, build.Build)
	}

	name := build.Downloads.Application.Name
	if name == "" || !strings.HasSuffix(name, ".jar") || strings.ContainsAny(name, `/\`) {
		return p.unresolved(ctx, rel, fmt.Errorf("build %d has no usable jar name %q: %w", build.Build, name, ErrNoMatchingBuild))
	}

	rel.Build = strconv.Itoa(build.Build)
	rel.JarName = name
	rel.Path = filepath.Join(p.serverDir, name)
	rel.Source = p.client.DownloadURL(p.project, version, build.Build, name)
	p.output.Info("Selected build %s (%s)", rel.Build, name)
	return rel, nil
}

func (p *HTTPProvider) unresolved(ctx context.Context, rel *Release, err error) (*Release, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	p.output.Warn("Could not resolve a %s jar: %v", p.flavor.Tag(), err)
	return rel, nil
}

// Provision downloads the jar when it is missing, or unconditionally
// when auto-update is on. There is no checksum comparison.
func (p *HTTPProvider) Provision(ctx context.Context, rel *Release, autoUpdate bool) error {
	if rel.Path == "" {
		return nil
	}
	if _, err := os.Stat(rel.Path); err == nil && !autoUpdate {
		p.output.Info("Using existing %s (auto-update disabled)", rel.JarName)
		return nil
	}

	if err := os.MkdirAll(p.serverDir, 0o755); err != nil {
		return fmt.Errorf("creating server directory: %w", err)
	}
	removed, err := RemoveOtherJars(p.serverDir, rel.JarName)
	if err != nil {
		return err
	}
	for _, name := range removed {
		p.output.Info("Removed stale jar %s", name)
	}

	p.output.Info("Downloading from: %s", rel.Source)
	if err := p.client.Download(ctx, rel.Source, rel.Path); err != nil {
		return err
	}
	p.output.Success("Downloaded %s", rel.JarName)
	return nil
}

// RemoveOtherJars deletes every *.jar directly inside dir except keep.
// Subdirectories (plugins, libraries) are not touched.
func RemoveOtherJars(dir, keep string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == keep || !strings.HasSuffix(strings.ToLower(e.Name()), ".jar") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}
