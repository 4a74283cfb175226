package management

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dominicfeliton/minecraft-server-script/internal/config"
	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
	"github.com/dominicfeliton/minecraft-server-script/internal/server"
	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

// fakeProvider resolves to a fixed version and, like the real providers,
// leaves the jar at Release.Path on Provision.
type fakeProvider struct {
	dir          string
	version      string
	jarName      string
	emptyPath    bool
	provisionErr error

	requests   []server.Request
	provisions int
}

func (p *fakeProvider) Resolve(_ context.Context, req server.Request) (*server.Release, error) {
	p.requests = append(p.requests, req)
	rel := &server.Release{Version: p.version, JarName: p.jarName}
	if req.Version != "" {
		rel.Version = req.Version
	}
	if !p.emptyPath {
		rel.Path = filepath.Join(p.dir, p.jarName)
	}
	return rel, nil
}

func (p *fakeProvider) Provision(_ context.Context, rel *server.Release, _ bool) error {
	p.provisions++
	if p.provisionErr != nil {
		return p.provisionErr
	}
	if rel.Path == "" {
		return nil
	}
	return os.WriteFile(rel.Path, []byte("jar"), 0o644)
}

type lifecycleFixture struct {
	c        *Controller
	runner   *platform.MockRunner
	handoff  *platform.MockHandoff
	provider *fakeProvider
	out      *bytes.Buffer
	dir      string
}

func newLifecycleFixture(t *testing.T, flavor config.Flavor) *lifecycleFixture {
	t.Helper()
	dir := t.TempDir()
	runner := platform.NewMockRunner()
	runner.ExistsMap["tmux"] = true
	runner.ExistsMap["java"] = true
	runner.OutputMap[runner.Key("java", "-version")] = []byte(`openjdk version "21.0.2" 2024-01-16`)
	runner.OutputMap[runner.Key("cat", "/proc/version")] = []byte("Linux version 6.8.0-generic")

	var buf bytes.Buffer
	out := ui.NewWriter(&buf, nil)
	cfg := config.EffectiveConfig{
		ServerDir:      dir,
		Flavor:         flavor,
		World:          "world",
		Xms:            "2G",
		Xmx:            "4G",
		JavaCmd:        "java",
		Session:        "mc",
		EULAAutoAccept: true,
	}
	provider := &fakeProvider{dir: dir, version: "1.21.4", jarName: "server.jar"}
	handoff := &platform.MockHandoff{}

	f := &lifecycleFixture{
		c: &Controller{
			Config:    cfg,
			Runner:    runner,
			Sessions:  NewTmuxManager(runner, "mc"),
			Handoff:   handoff,
			Provider:  provider,
			Guard:     &Guard{ServerDir: dir, World: "world", ScriptName: "mcserver", Output: out, Confirm: func(string) bool { return false }},
			Output:    out,
			Self:      "/usr/local/bin/mcserver",
			StopGrace: time.Millisecond,
		},
		runner:   runner,
		handoff:  handoff,
		provider: provider,
		out:      &buf,
		dir:      dir,
	}
	return f
}

func (f *lifecycleFixture) sessionAbsent() {
	f.runner.ErrorMap[f.runner.Key("tmux", "has-session", "-t", "=mc")] = errors.New("can't find session: mc")
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		if d.IsDir() {
			files[rel] = "dir"
			return nil
		}
		data, err := os.ReadFile(path)
		files[rel] = string(data)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

func TestStop_NotRunning(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	f.sessionAbsent()

	if err := f.c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !strings.Contains(f.out.String(), "not running") {
		t.Errorf("output = %q, want a not running message", f.out.String())
	}
	for _, c := range f.runner.Commands {
		if len(c.Args) > 0 && (c.Args[0] == "send-keys" || c.Args[0] == "kill-session") {
			t.Errorf("unexpected teardown command %v", c.Args)
		}
	}
}

func TestStop_Running(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)

	if err := f.c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !f.runner.Ran("tmux", "send-keys", "-t", "=mc", "stop", "Enter") {
		t.Error("shutdown command not sent")
	}
	if !f.runner.Ran("tmux", "kill-session", "-t", "=mc") {
		t.Error("session not killed")
	}
}

func TestStop_ProxyUsesEnd(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorVelocity)

	if err := f.c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !f.runner.Ran("tmux", "send-keys", "-t", "=mc", "end", "Enter") {
		t.Errorf("commands = %+v", f.runner.Commands)
	}
}

func TestStop_Cancelled(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	f.c.StopGrace = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.c.Stop(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !f.runner.Ran("tmux", "send-keys", "-t", "=mc", "stop", "Enter") {
		t.Error("shutdown command not sent")
	}
	if !f.runner.Ran("tmux", "kill-session", "-t", "=mc") {
		t.Error("session left running after an interrupted wait")
	}
}

func TestStart_SessionRunning(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	touch(t, f.dir, ".mc_version", "eula.txt")
	mkdirs(t, f.dir, "world")
	before := snapshot(t, f.dir)

	err := f.c.Start(context.Background(), Options{Version: "1.21.5"})
	if !errors.Is(err, ErrSessionRunning) {
		t.Fatalf("err = %v, want ErrSessionRunning", err)
	}
	if len(f.provider.requests) != 0 {
		t.Error("nothing may be resolved when the session is live")
	}
	if after := snapshot(t, f.dir); !reflect.DeepEqual(before, after) {
		t.Errorf("server directory changed:\nbefore %v\nafter  %v", before, after)
	}
}

func TestStart_Tmux(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	f.sessionAbsent()

	if err := f.c.Start(context.Background(), Options{Xmx: "8G"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var create *platform.MockCommand
	for i := range f.runner.Commands {
		c := f.runner.Commands[i]
		if c.Name == "tmux" && len(c.Args) > 0 && c.Args[0] == "new-session" {
			create = &c
		}
	}
	if create == nil {
		t.Fatalf("no tmux session created: %+v", f.runner.Commands)
	}
	args := create.Args
	if !slices.Equal(args[:6], []string{"new-session", "-d", "-s", "mc", "-c", f.dir}) {
		t.Errorf("new-session args = %v", args[:6])
	}
	if !slices.Contains(args, "-Xmx8G") || !slices.Contains(args, "-Xms2G") {
		t.Errorf("heap flags wrong: %v", args)
	}
	if args[len(args)-1] != "--nogui" {
		t.Errorf("last arg = %q", args[len(args)-1])
	}
	if len(f.handoff.Calls) != 0 {
		t.Error("no handoff expected with tmux")
	}

	v, ok, _ := server.ReadVersionRecord(filepath.Join(f.dir, ".mc_version"))
	if !ok || v != "1.21.4" {
		t.Errorf("version record = %q, %v", v, ok)
	}
	if !server.EULAAccepted(f.dir) {
		t.Error("EULA not accepted")
	}
	if !strings.Contains(f.out.String(), "tmux attach -t mc") {
		t.Error("attach instructions missing")
	}
}

func TestStart_NoTmuxHandsOff(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)

	if err := f.c.Start(context.Background(), Options{NoTmux: true}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(f.handoff.Calls) != 1 {
		t.Fatalf("handoff calls = %d, want 1", len(f.handoff.Calls))
	}
	if f.handoff.Calls[0][0] != "java" || f.handoff.Dirs[0] != f.dir {
		t.Errorf("handoff = %v in %q", f.handoff.Calls[0], f.handoff.Dirs[0])
	}
	if f.runner.RanName("tmux") {
		t.Error("tmux must not be used with --no-tmux")
	}
}

func TestStart_MissingJava(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	f.sessionAbsent()
	f.runner.ExistsMap["java"] = false

	err := f.c.Start(context.Background(), Options{})
	var missing *platform.MissingToolError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingToolError", err)
	}
	if len(f.provider.requests) != 0 {
		t.Error("nothing may be resolved without java")
	}
}

func TestStart_UnresolvedJar(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	f.sessionAbsent()
	f.provider.emptyPath = true
	touch(t, f.dir, ".mc_version")

	err := f.c.Start(context.Background(), Options{})
	if !errors.Is(err, ErrJarNotFound) {
		t.Fatalf("err = %v, want ErrJarNotFound", err)
	}
	if len(backupDirs(t, f.dir)) != 0 {
		t.Error("no transition without a resolved artifact")
	}
}

func TestStart_FoliaNeedsJava21(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorFolia)
	f.sessionAbsent()
	f.runner.OutputMap[f.runner.Key("java", "-version")] = []byte(`openjdk version "17.0.8" 2023-07-18`)

	err := f.c.Start(context.Background(), Options{})
	if err == nil || !strings.Contains(err.Error(), "Java 21") {
		t.Fatalf("err = %v, want Java 21 requirement", err)
	}
}

func TestStart_VersionTransition(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	f.sessionAbsent()
	mkdirs(t, f.dir, "world")
	if err := server.WriteVersionRecord(filepath.Join(f.dir, ".mc_version"), "1.20.1"); err != nil {
		t.Fatal(err)
	}

	if err := f.c.Start(context.Background(), Options{Version: "1.20.2"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.provider.requests[0].Recorded; got != "1.20.1" {
		t.Errorf("Recorded = %q", got)
	}
	dirs := backupDirs(t, f.dir)
	if len(dirs) != 1 {
		t.Fatalf("backup dirs = %v", dirs)
	}
	if _, err := os.Stat(filepath.Join(f.dir, dirs[0], "world")); err != nil {
		t.Error("world not in backup")
	}
	if v, _, _ := server.ReadVersionRecord(filepath.Join(f.dir, ".mc_version")); v != "1.20.2" {
		t.Errorf("record = %q, want 1.20.2", v)
	}
}

func TestStart_ProvisionFailureKeepsRecord(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorSpigot)
	f.sessionAbsent()
	f.provider.provisionErr = &server.BuildError{Step: "BuildTools", Err: errors.New("exit status 1")}
	if err := server.WriteVersionRecord(filepath.Join(f.dir, ".mc_version"), "1.21.4"); err != nil {
		t.Fatal(err)
	}

	err := f.c.Start(context.Background(), Options{Version: "1.21.5"})
	var be *server.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want BuildError", err)
	}
	if v, _, _ := server.ReadVersionRecord(filepath.Join(f.dir, ".mc_version")); v != "1.21.4" {
		t.Errorf("record = %q, must not change after a failed provision", v)
	}
}

func TestStart_ProxyKeepsNoRecord(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorVelocity)
	f.sessionAbsent()

	if err := f.c.Start(context.Background(), Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, ".mc_version")); !os.IsNotExist(err) {
		t.Error("proxy must not write a version record")
	}
	if _, err := os.Stat(filepath.Join(f.dir, "eula.txt")); !os.IsNotExist(err) {
		t.Error("proxy needs no EULA")
	}
}

func TestStart_EULAWarnsWithoutAutoAccept(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	f.sessionAbsent()
	f.c.Config.EULAAutoAccept = false

	if err := f.c.Start(context.Background(), Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if server.EULAAccepted(f.dir) {
		t.Error("EULA must not be accepted automatically")
	}
	if !strings.Contains(f.out.String(), "EULA not accepted") {
		t.Error("expected an EULA warning")
	}
}

func TestStart_WSLConnectionInfo(t *testing.T) {
	f := newLifecycleFixture(t, config.FlavorPaper)
	f.sessionAbsent()
	f.runner.OutputMap[f.runner.Key("cat", "/proc/version")] = []byte("Linux version 5.15.153.1-microsoft-standard-WSL2")
	f.runner.OutputMap[f.runner.Key("hostname", "-I")] = []byte("172.20.1.5 10.0.0.2\n")

	if err := f.c.Start(context.Background(), Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !platform.IsWSL(context.Background(), f.runner) {
		t.Skip("WSL detection only applies on linux")
	}
	if !strings.Contains(f.out.String(), "172.20.1.5:25565") {
		t.Errorf("output = %q", f.out.String())
	}
}

func TestToggle(t *testing.T) {
	t.Run("live session stops", func(t *testing.T) {
		f := newLifecycleFixture(t, config.FlavorPaper)
		if err := f.c.Toggle(context.Background(), Options{}); err != nil {
			t.Fatalf("Toggle: %v", err)
		}
		if !f.runner.Ran("tmux", "kill-session", "-t", "=mc") {
			t.Error("expected stop")
		}
		if len(f.provider.requests) != 0 {
			t.Error("toggle on a live session must not start")
		}
	})

	t.Run("absent session starts", func(t *testing.T) {
		f := newLifecycleFixture(t, config.FlavorPaper)
		f.sessionAbsent()
		if err := f.c.Toggle(context.Background(), Options{}); err != nil {
			t.Fatalf("Toggle: %v", err)
		}
		if len(f.provider.requests) != 1 {
			t.Error("expected start")
		}
	})

	t.Run("no tmux starts", func(t *testing.T) {
		f := newLifecycleFixture(t, config.FlavorPaper)
		f.runner.ExistsMap["tmux"] = false
		if err := f.c.Toggle(context.Background(), Options{}); err != nil {
			t.Fatalf("Toggle: %v", err)
		}
		if len(f.handoff.Calls) != 1 {
			t.Error("expected a foreground start")
		}
		if f.runner.RanName("tmux") {
			t.Error("tmux is not installed")
		}
	})
}

func TestRestart(t *testing.T) {
	for _, live := range []bool{true, false} {
		f := newLifecycleFixture(t, config.FlavorPaper)
		if !live {
			f.sessionAbsent()
		}
		opts := Options{Version: "1.21.4", Build: "100", NoUpdate: true, Xmx: "6G", NoTmux: false}

		if err := f.c.Restart(context.Background(), opts); err != nil {
			t.Fatalf("Restart(live=%v): %v", live, err)
		}
		want := []string{"/usr/local/bin/mcserver", "start", "1.21.4", "100", "--no-update", "--xmx=6G"}
		if len(f.handoff.Calls) != 1 || !slices.Equal(f.handoff.Calls[0], want) {
			t.Errorf("live=%v handoff = %v, want %v", live, f.handoff.Calls, want)
		}
		if len(f.provider.requests) != 0 {
			t.Errorf("live=%v: restart deploys in the new process, not this one", live)
		}
	}
}

func TestOptions_Args(t *testing.T) {
	tests := []struct {
		opts Options
		want []string
	}{
		{Options{}, nil},
		{Options{Build: "12"}, nil},
		{Options{Version: "1.21.4", Build: "12", Xms: "1G", JavaCmd: "/opt/java", NoTmux: true, Debug: true},
			[]string{"1.21.4", "12", "--xms=1G", "--java-cmd=/opt/java", "--no-tmux", "--debug"}},
	}
	for _, tt := range tests {
		if got := tt.opts.Args(); !slices.Equal(got, tt.want) {
			t.Errorf("%+v.Args() = %v, want %v", tt.opts, got, tt.want)
		}
	}
}
