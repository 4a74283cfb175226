package management

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

// BackupPrefix starts the name of every transition backup directory.
const BackupPrefix = "backup-"

// ConfirmFunc decides whether path may be deleted. It is asked once per
// entry; there is no way to answer for several entries at once.
type ConfirmFunc func(path string) bool

// Guard backs up world data and cleans the server directory when the
// deployed game version changes.
type Guard struct {
	ServerDir  string
	World      string
	ScriptName string

	// Protect lists extra top-level names that are never offered for deletion.
	Protect []string

	Confirm ConfirmFunc
	Now     func() time.Time
	Output  *ui.UI

	done bool
}

// NewGuard creates a Guard for cfg that asks the operator through output.
func NewGuard(cfg config.EffectiveConfig, scriptName string, output *ui.UI) *Guard {
	return &Guard{
		ServerDir:  cfg.ServerDir,
		World:      cfg.World,
		ScriptName: scriptName,
		Confirm: func(path string) bool {
			return output.Confirm("Delete %s?", path)
		},
		Now:    time.Now,
		Output: output,
	}
}

// MaybeTransition moves the world folders into a fresh backup directory
// and offers every unprotected top-level entry for deletion. It does
// nothing unless flavor carries a world, a version record existed and
// newVersion is non-empty and differs from oldVersion. It runs at most
// once per Guard. The returned path is the backup directory, or "".
func (g *Guard) MaybeTransition(flavor config.Flavor, oldVersion, newVersion string, hadRecord bool) (string, error) {
	if g.done || !flavor.CarriesWorld() || !hadRecord || newVersion == "" || newVersion == oldVersion {
		return "", nil
	}
	g.done = true

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	name := BackupPrefix + now().Format("20060102-150405") + "-" + uuid.NewString()[:8]
	backupDir := filepath.Join(g.ServerDir, name)

	g.Output.Step("Version change %s -> %s", oldVersion, newVersion)
	if err := os.Mkdir(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	for _, world := range findWorldDirs(g.ServerDir, g.World) {
		if err := os.Rename(filepath.Join(g.ServerDir, world), filepath.Join(backupDir, world)); err != nil {
			return backupDir, fmt.Errorf("moving %s to backup: %w", world, err)
		}
		g.Output.Info("Moved %s to %s", world, name)
	}

	if err := g.clean(name); err != nil {
		return backupDir, err
	}
	g.Output.Success("Backup stored in %s", backupDir)
	return backupDir, nil
}

func (g *Guard) clean(backupName string) error {
	entries, err := os.ReadDir(g.ServerDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", g.ServerDir, err)
	}
	for _, e := range entries {
		if g.protected(e.Name(), backupName) {
			continue
		}
		path := filepath.Join(g.ServerDir, e.Name())
		if g.Confirm == nil || !g.Confirm(path) {
			g.Output.Info("Kept %s", e.Name())
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("deleting %s: %w", path, err)
		}
		g.Output.Info("Deleted %s", e.Name())
	}
	return nil
}

func (g *Guard) protected(name, backupName string) bool {
	switch name {
	case backupName, g.ScriptName, config.VersionRecordName, config.ConfigFileName,
		"plugins", "server.properties", "eula.txt":
		return true
	}
	if strings.HasPrefix(name, BackupPrefix) {
		return true
	}
	if g.World != "" && strings.HasPrefix(name, g.World) {
		return true
	}
	for _, p := range g.Protect {
		if name == p {
			return true
		}
	}
	return false
}

// findWorldDirs returns the world folder and its nether and end
// companions that exist under serverDir.
func findWorldDirs(serverDir, world string) []string {
	if world == "" {
		return nil
	}
	candidates := []string{world, world + "_nether", world + "_the_end"}
	var found []string
	for _, name := range candidates {
		path := filepath.Join(serverDir, name)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			found = append(found, name)
		}
	}
	return found
}
