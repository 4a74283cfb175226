package platform

import (
	"context"
	"errors"
	"testing"
)

func TestMockRunner_Run(t *testing.T) {
	m := NewMockRunner()
	ctx := context.Background()

	if err := m.Run(ctx, "echo", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(m.Commands))
	}
	if m.Commands[0].Name != "echo" {
		t.Fatalf("expected echo, got %s", m.Commands[0].Name)
	}
	if !m.Ran("echo", "hello") {
		t.Fatal("Ran() should find the recorded command")
	}
}

func TestMockRunner_RunWithOutput(t *testing.T) {
	m := NewMockRunner()
	m.OutputMap[m.Key("cat", "/etc/hostname")] = []byte("testhost\n")

	out, err := m.RunWithOutput(context.Background(), "cat", "/etc/hostname")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "testhost\n" {
		t.Fatalf("expected testhost, got %s", out)
	}
}

func TestMockRunner_CommandExists(t *testing.T) {
	m := NewMockRunner()
	m.ExistsMap["tmux"] = true

	if !m.CommandExists("tmux") {
		t.Fatal("expected tmux to exist")
	}
	if m.CommandExists("nonexistent") {
		t.Fatal("expected nonexistent to not exist")
	}
}

func TestMockRunner_RunAttached(t *testing.T) {
	m := NewMockRunner()
	if err := m.RunAttached(context.Background(), "/srv/build", "java", "-jar", "BuildTools.jar"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := m.Commands[0]
	if !c.Attached || c.Dir != "/srv/build" {
		t.Fatalf("unexpected command record: %+v", c)
	}
}

func TestMockRunner_Hooks(t *testing.T) {
	m := NewMockRunner()
	called := false
	m.Hooks[m.Key("make")] = func(MockCommand) error {
		called = true
		return errors.New("boom")
	}

	if err := m.Run(context.Background(), "make"); err == nil {
		t.Fatal("expected hook error")
	}
	if !called {
		t.Fatal("hook was not called")
	}
	if !m.RanName("make") {
		t.Fatal("RanName() should report make")
	}
}
