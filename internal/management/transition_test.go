package management

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.MkdirAll(filepath.Join(root, n), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(root, n), []byte(n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestGuard(t *testing.T, confirm ConfirmFunc) (*Guard, string) {
	t.Helper()
	dir := t.TempDir()
	return &Guard{
		ServerDir:  dir,
		World:      "world",
		ScriptName: "mcserver",
		Confirm:    confirm,
		Now:        func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) },
		Output:     ui.NewWriter(&bytes.Buffer{}, nil),
	}, dir
}

func backupDirs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), BackupPrefix) {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestMaybeTransition_MovesWorld(t *testing.T) {
	g, dir := newTestGuard(t, func(string) bool { return false })
	mkdirs(t, dir, "world/region", "world_nether", "world_the_end")
	touch(t, dir, "world/level.dat")

	backup, err := g.MaybeTransition(config.FlavorPaper, "1.20.1", "1.20.2", true)
	if err != nil {
		t.Fatalf("MaybeTransition: %v", err)
	}

	dirs := backupDirs(t, dir)
	if len(dirs) != 1 {
		t.Fatalf("backup dirs = %v, want exactly one", dirs)
	}
	if filepath.Base(backup) != dirs[0] {
		t.Errorf("returned %q, found %q", backup, dirs[0])
	}
	if !strings.HasPrefix(dirs[0], "backup-20240501-123000-") || len(dirs[0]) != len("backup-20240501-123000-")+8 {
		t.Errorf("backup name = %q", dirs[0])
	}
	for _, w := range []string{"world", "world_nether", "world_the_end"} {
		if _, err := os.Stat(filepath.Join(dir, w)); !os.IsNotExist(err) {
			t.Errorf("%s still at old location", w)
		}
		if _, err := os.Stat(filepath.Join(backup, w)); err != nil {
			t.Errorf("%s missing from backup", w)
		}
	}
	if _, err := os.Stat(filepath.Join(backup, "world", "level.dat")); err != nil {
		t.Error("world contents not moved")
	}
}

func TestMaybeTransition_NoOp(t *testing.T) {
	tests := []struct {
		name      string
		flavor    config.Flavor
		old, new  string
		hadRecord bool
	}{
		{"same version", config.FlavorPaper, "1.20.1", "1.20.1", true},
		{"no record", config.FlavorPaper, "", "1.20.2", false},
		{"empty new version", config.FlavorSpigot, "1.20.1", "", true},
		{"proxy", config.FlavorVelocity, "3.3.0", "3.4.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompts := 0
			g, dir := newTestGuard(t, func(string) bool { prompts++; return true })
			mkdirs(t, dir, "world", "cache")

			backup, err := g.MaybeTransition(tt.flavor, tt.old, tt.new, tt.hadRecord)
			if err != nil {
				t.Fatalf("MaybeTransition: %v", err)
			}
			if backup != "" || len(backupDirs(t, dir)) != 0 {
				t.Error("no backup expected")
			}
			if prompts != 0 {
				t.Errorf("prompts = %d, want 0", prompts)
			}
			if _, err := os.Stat(filepath.Join(dir, "world")); err != nil {
				t.Error("world must stay in place")
			}
		})
	}
}

func TestMaybeTransition_ConfirmPerEntry(t *testing.T) {
	var asked []string
	g, dir := newTestGuard(t, func(path string) bool {
		asked = append(asked, filepath.Base(path))
		return filepath.Base(path) == "cache"
	})
	g.Protect = []string{"ops.json"}

	mkdirs(t, dir, "world", "world_custom", "plugins", "cache", "libraries", "backup-20240101-000000-deadbeef")
	touch(t, dir, "mcserver", ".mc_version", "server.properties", "eula.txt", "mcserver.conf",
		"paper-1.20.1-7.jar", "ops.json")

	if _, err := g.MaybeTransition(config.FlavorPaper, "1.20.1", "1.20.2", true); err != nil {
		t.Fatalf("MaybeTransition: %v", err)
	}

	sort.Strings(asked)
	want := []string{"cache", "libraries", "paper-1.20.1-7.jar"}
	if strings.Join(asked, ",") != strings.Join(want, ",") {
		t.Errorf("asked about %v, want %v", asked, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache")); !os.IsNotExist(err) {
		t.Error("confirmed entry not deleted")
	}
	for _, kept := range []string{"libraries", "paper-1.20.1-7.jar", "world_custom", "plugins", "ops.json",
		"server.properties", "eula.txt", "mcserver", ".mc_version", "mcserver.conf"} {
		if _, err := os.Stat(filepath.Join(dir, kept)); err != nil {
			t.Errorf("%s should be kept", kept)
		}
	}
}

func TestMaybeTransition_NilConfirmDeletesNothing(t *testing.T) {
	g, dir := newTestGuard(t, nil)
	mkdirs(t, dir, "cache")

	if _, err := g.MaybeTransition(config.FlavorFolia, "1.21.3", "1.21.4", true); err != nil {
		t.Fatalf("MaybeTransition: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache")); err != nil {
		t.Error("nothing may be deleted without a confirmation")
	}
}

func TestMaybeTransition_AtMostOnce(t *testing.T) {
	g, dir := newTestGuard(t, func(string) bool { return false })
	mkdirs(t, dir, "world")

	if _, err := g.MaybeTransition(config.FlavorPaper, "1.20.1", "1.20.2", true); err != nil {
		t.Fatal(err)
	}
	mkdirs(t, dir, "world")
	if _, err := g.MaybeTransition(config.FlavorPaper, "1.20.2", "1.20.3", true); err != nil {
		t.Fatal(err)
	}
	if n := len(backupDirs(t, dir)); n != 1 {
		t.Errorf("backup dirs = %d, want 1", n)
	}
}

func TestFindWorldDirs(t *testing.T) {
	dir := t.TempDir()

	if dirs := findWorldDirs(dir, "world"); len(dirs) != 0 {
		t.Errorf("expected no dirs, got %v", dirs)
	}

	mkdirs(t, dir, "survival", "survival_the_end")
	touch(t, dir, "survival_nether")

	dirs := findWorldDirs(dir, "survival")
	if len(dirs) != 2 || dirs[0] != "survival" || dirs[1] != "survival_the_end" {
		t.Errorf("unexpected dirs: %v", dirs)
	}
}
