package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeProjectIDShape(t *testing.T) {
	id := ComputeProjectID("/home/dev/MyGame")
	if !strings.HasPrefix(id, "proj-") {
		t.Errorf("id = %q, want proj- prefix", id)
	}
	if len(id) != len("proj-")+8 {
		t.Errorf("id = %q, want 8 hex digits after the prefix", id)
	}
	for _, c := range id[len("proj-"):] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("id %q contains non-hex digit %q", id, c)
		}
	}
}

func TestComputeProjectIDDeterministic(t *testing.T) {
	a := ComputeProjectID("/home/dev/MyGame")
	b := ComputeProjectID("/home/dev/MyGame")
	if a != b {
		t.Errorf("same path gave %q and %q", a, b)
	}
	if ComputeProjectID("/home/dev/Other") == a {
		t.Error("distinct paths collided")
	}
}

func TestComputeProjectIDCleansPath(t *testing.T) {
	a := ComputeProjectID("/home/dev/MyGame")
	b := ComputeProjectID("/home/dev//MyGame/")
	if a != b {
		t.Errorf("uncleaned path gave %q, want %q", b, a)
	}
}

func TestComputeProjectIDResolvesSymlinks(t *testing.T) {
	real := filepath.Join(t.TempDir(), "MyGame")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(t.TempDir(), "game-link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if got, want := ComputeProjectID(link), ComputeProjectID(real); got != want {
		t.Errorf("symlink gave %q, real path gave %q", got, want)
	}
}

func TestComputeProjectIDAbsolutizesRelativePaths(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)

	if got, want := ComputeProjectID("."), ComputeProjectID(root); got != want {
		t.Errorf("relative path gave %q, absolute gave %q", got, want)
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	root := t.TempDir()
	want := Descriptor{ProjectID: "proj-0a1b2c3d", Port: 43750, PID: 1234}

	if err := WriteDescriptor(root, want); err != nil {
		t.Fatalf("WriteDescriptor: %v", err)
	}
	got, err := ReadDescriptor(root)
	if err != nil {
		t.Fatalf("ReadDescriptor: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// No temp files left behind after the rename.
	entries, err := os.ReadDir(filepath.Join(root, ConfigDirName))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != DescriptorFileName {
		t.Errorf("config dir contents = %v, want just %s", entries, DescriptorFileName)
	}
}

func TestReadDescriptorMissing(t *testing.T) {
	_, err := ReadDescriptor(t.TempDir())
	if err == nil {
		t.Fatal("expected an error for a missing descriptor")
	}
}

func TestEnsureNotRunningNoDescriptor(t *testing.T) {
	if err := EnsureNotRunning(t.TempDir()); err != nil {
		t.Errorf("EnsureNotRunning = %v, want nil", err)
	}
}

func TestEnsureNotRunningStalePID(t *testing.T) {
	root := t.TempDir()
	// PID from a range no live process should occupy.
	err := WriteDescriptor(root, Descriptor{ProjectID: "proj-deadbeef", Port: 1, PID: 1 << 22})
	if err != nil {
		t.Fatalf("WriteDescriptor: %v", err)
	}
	if err := EnsureNotRunning(root); err != nil {
		t.Errorf("EnsureNotRunning = %v, want nil for a stale descriptor", err)
	}
}

func TestEnsureNotRunningLivePIDDeadPort(t *testing.T) {
	root := t.TempDir()
	// Our own PID is alive, but nothing answers /health on the port.
	err := WriteDescriptor(root, Descriptor{ProjectID: "proj-deadbeef", Port: 1, PID: os.Getpid()})
	if err != nil {
		t.Fatalf("WriteDescriptor: %v", err)
	}
	if err := EnsureNotRunning(root); err != nil {
		t.Errorf("EnsureNotRunning = %v, want nil when the port is dead", err)
	}
}
