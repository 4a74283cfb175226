package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Keys recognized in the environment and in config files.
const (
	KeyServerDir       = "MC_SERVER_DIR"
	KeyFlavor          = "MC_FLAVOR"
	KeyWorld           = "MC_WORLD"
	KeyXms             = "MC_XMS"
	KeyXmx             = "MC_XMX"
	KeyJavaCmd         = "MC_JAVA_CMD"
	KeySession         = "MC_SESSION"
	KeyEULAAutoAccept  = "MC_EULA_AUTO_ACCEPT"
	KeyPaperAPI        = "MC_PAPER_API"
	KeyLogLevel        = "MC_LOG_LEVEL"
	KeyFoliaSrcDir     = "FOLIA_SRC_DIR"
	KeyFoliaGitURL     = "FOLIA_GIT_URL"
	KeyFoliaBranch     = "FOLIA_BRANCH"
	KeyFoliaDockerDir  = "FOLIA_DOCKER_DIR"
	KeySpigotBuildDir  = "SPIGOT_BUILD_DIR"
	ConfigFileName     = "mcserver.conf"
	VersionRecordName  = ".mc_version"
	DefaultPaperAPIURL = "https://api.papermc.io/v2"
)

// allowedKeys is the fixed set of keys accepted from a config file.
var allowedKeys = []string{
	KeyServerDir,
	KeyFlavor,
	KeyWorld,
	KeyXms,
	KeyXmx,
	KeyJavaCmd,
	KeySession,
	KeyEULAAutoAccept,
	KeyPaperAPI,
	KeyLogLevel,
	KeyFoliaSrcDir,
	KeyFoliaGitURL,
	KeyFoliaBranch,
	KeyFoliaDockerDir,
	KeySpigotBuildDir,
}

// Env looks up an environment variable. os.LookupEnv satisfies it.
type Env func(key string) (string, bool)

// MapEnv adapts a map to an Env.
func MapEnv(m map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// EffectiveConfig holds the merged settings for one invocation.
// It is built once by Resolve and never modified afterwards.
type EffectiveConfig struct {
	ServerDir      string
	Flavor         Flavor
	World          string
	Xms            string
	Xmx            string
	JavaCmd        string
	Session        string
	EULAAutoAccept bool
	PaperAPI       string
	LogLevel       string
	FoliaSrcDir    string
	FoliaGitURL    string
	FoliaBranch    string
	FoliaDockerDir string
	SpigotBuildDir string

	// Source is the config file that was consulted, empty if none.
	Source string
	// Warnings describes config file problems that were skipped over.
	// Resolve runs before the logger exists, so the caller reports them.
	Warnings []string
}

// VersionFile returns the path of the persisted last-deployed version.
func (c EffectiveConfig) VersionFile() string {
	return filepath.Join(c.ServerDir, VersionRecordName)
}

// Defaults returns the built-in value for every allow-listed key.
func Defaults() map[string]string {
	home, _ := os.UserHomeDir()
	return map[string]string{
		KeyServerDir:      filepath.Join(home, "minecraft-server"),
		KeyFlavor:         string(FlavorPaper),
		KeyWorld:          "world",
		KeyXms:            "2G",
		KeyXmx:            "4G",
		KeyJavaCmd:        "java",
		KeySession:        "",
		KeyEULAAutoAccept: "true",
		KeyPaperAPI:       DefaultPaperAPIURL,
		KeyLogLevel:       "warn",
		KeyFoliaSrcDir:    filepath.Join(home, "folia-src"),
		KeyFoliaGitURL:    "https://github.com/PaperMC/Folia.git",
		KeyFoliaBranch:    "master",
		KeyFoliaDockerDir: filepath.Join(home, "folia-docker"),
		KeySpigotBuildDir: filepath.Join(home, "spigot-build"),
	}
}

// DefaultCandidates returns the config file search order: the server
// directory first, then the user config dir, then the system-wide file.
func DefaultCandidates(serverDir string) []string {
	candidates := []string{filepath.Join(serverDir, ConfigFileName)}
	if cfgDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(cfgDir, "mcserver", ConfigFileName))
	}
	return append(candidates, filepath.Join("/etc", ConfigFileName))
}

// ServerDirHint returns the server directory as known before any config
// file is read. It is used to locate the directory-local config file.
func ServerDirHint(env Env) string {
	if v, ok := env(KeyServerDir); ok && v != "" {
		return expandHome(v)
	}
	return Defaults()[KeyServerDir]
}

// Resolve merges env, the first existing candidate file and the defaults.
// A non-empty value always wins over the next layer; empty values count as
// unset. Missing or unreadable files and malformed lines fall back to
// defaults and are listed in Warnings; only invalid values are errors.
func Resolve(env Env, candidates []string) (EffectiveConfig, error) {
	file, source, warnings := readFirst(candidates)
	defaults := Defaults()

	values := make(map[string]string, len(allowedKeys))
	for _, key := range allowedKeys {
		if v, ok := env(key); ok && v != "" {
			values[key] = v
			continue
		}
		if v, ok := file[key]; ok && v != "" {
			values[key] = v
			continue
		}
		values[key] = defaults[key]
	}

	flavor, err := ParseFlavor(values[KeyFlavor])
	if err != nil {
		return EffectiveConfig{}, err
	}

	cfg := EffectiveConfig{
		ServerDir:      expandHome(values[KeyServerDir]),
		Flavor:         flavor,
		World:          values[KeyWorld],
		Xms:            values[KeyXms],
		Xmx:            values[KeyXmx],
		JavaCmd:        values[KeyJavaCmd],
		Session:        values[KeySession],
		EULAAutoAccept: parseBool(values[KeyEULAAutoAccept]),
		PaperAPI:       strings.TrimRight(values[KeyPaperAPI], "/"),
		LogLevel:       values[KeyLogLevel],
		FoliaSrcDir:    expandHome(values[KeyFoliaSrcDir]),
		FoliaGitURL:    values[KeyFoliaGitURL],
		FoliaBranch:    values[KeyFoliaBranch],
		FoliaDockerDir: expandHome(values[KeyFoliaDockerDir]),
		SpigotBuildDir: expandHome(values[KeySpigotBuildDir]),
		Source:         source,
		Warnings:       warnings,
	}
	if cfg.Session == "" {
		cfg.Session = SessionName(cfg.ServerDir)
	}
	if err := cfg.Validate(); err != nil {
		return EffectiveConfig{}, err
	}
	return cfg, nil
}

// Validate checks that the resolved values are usable.
func (c EffectiveConfig) Validate() error {
	if c.ServerDir == "" {
		return fmt.Errorf("server directory must be set")
	}
	if c.World == "" {
		return fmt.Errorf("world name must be set")
	}
	if c.JavaCmd == "" {
		return fmt.Errorf("java command must be set")
	}
	if c.Xms == "" || c.Xmx == "" {
		return fmt.Errorf("heap sizes must be set")
	}
	return nil
}

// SessionName derives the multiplexer session name from the server
// directory's base name. tmux treats '.' and ':' as target separators.
func SessionName(serverDir string) string {
	name := filepath.Base(filepath.Clean(serverDir))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "minecraft"
	}
	return strings.NewReplacer(".", "_", ":", "_").Replace(name)
}

// readFirst parses the first candidate that exists. Later candidates are
// never consulted, even when the first one lacks keys.
func readFirst(candidates []string) (map[string]string, string, []string) {
	var warnings []string
	for _, path := range candidates {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				warnings = append(warnings, fmt.Sprintf("config file %s unreadable: %v", path, err))
			}
			continue
		}
		values, lineWarnings, err := parseFile(f, path)
		f.Close()
		warnings = append(warnings, lineWarnings...)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("reading %s: %v", path, err))
		}
		return values, path, warnings
	}
	return nil, "", warnings
}

// parseFile reads KEY=value lines. Blank lines and # comments are skipped,
// as are lines without '=' and keys outside the allow-list. Values are
// taken literally apart from surrounding whitespace and one pair of
// matching quotes; '$' is not expanded.
func parseFile(f *os.File, path string) (map[string]string, []string, error) {
	values := map[string]string{}
	var warnings []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			warnings = append(warnings, fmt.Sprintf("%s:%d: ignoring malformed line", path, lineNo))
			continue
		}
		if !isAllowed(key) {
			continue
		}
		values[key] = unquote(strings.TrimSpace(value))
	}
	return values, warnings, scanner.Err()
}

func isAllowed(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// unquote strips one pair of matching single or double quotes.
func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return strings.TrimSpace(v[1 : len(v)-1])
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
