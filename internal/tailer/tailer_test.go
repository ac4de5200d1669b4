package tailer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unityctl/unityctl/internal/bridge"
)

func newTestTailer(t *testing.T) (*Tailer, string, *bridge.LogBuffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "editor.log")
	logs := bridge.NewLogBuffer(100)
	tl := New(slog.New(slog.DiscardHandler), path, logs)
	t.Cleanup(tl.closeFile)
	return tl, path, logs
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func messages(logs *bridge.LogBuffer) []string {
	var out []string
	for _, e := range logs.Tail(0, bridge.SourceEditor, true).Entries {
		out = append(out, e.Message)
	}
	return out
}

func TestTailerReadsAppendedLines(t *testing.T) {
	tl, path, logs := newTestTailer(t)

	appendFile(t, path, "first line\nsecond line\n")
	tl.drain()

	got := messages(logs)
	if len(got) != 2 || got[0] != "first line" || got[1] != "second line" {
		t.Fatalf("messages = %v", got)
	}
	for _, e := range logs.Tail(0, bridge.SourceAll, true).Entries {
		if e.Source != bridge.SourceEditor {
			t.Errorf("entry source = %q, want editor", e.Source)
		}
	}

	appendFile(t, path, "third line\n")
	tl.drain()
	if got := messages(logs); len(got) != 3 || got[2] != "third line" {
		t.Errorf("messages after append = %v", got)
	}
}

func TestTailerCarriesPartialLines(t *testing.T) {
	tl, path, logs := newTestTailer(t)

	appendFile(t, path, "par")
	tl.drain()
	if got := messages(logs); len(got) != 0 {
		t.Fatalf("partial line emitted early: %v", got)
	}

	appendFile(t, path, "tial\n")
	tl.drain()
	if got := messages(logs); len(got) != 1 || got[0] != "partial" {
		t.Errorf("messages = %v, want [partial]", got)
	}
}

func TestTailerTrimsCRLF(t *testing.T) {
	tl, path, logs := newTestTailer(t)

	appendFile(t, path, "windows line\r\n\r\n")
	tl.drain()
	got := messages(logs)
	if len(got) != 1 || got[0] != "windows line" {
		t.Errorf("messages = %v, want [windows line] with CR stripped and blanks dropped", got)
	}
}

func TestTailerReopensAfterTruncation(t *testing.T) {
	tl, path, logs := newTestTailer(t)

	appendFile(t, path, "old one\nold two\n")
	tl.drain()

	if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tl.drain()

	got := messages(logs)
	if len(got) != 3 || got[2] != "fresh" {
		t.Errorf("messages = %v, want the post-truncation line appended", got)
	}
}

func TestTailerWaitsForMissingFile(t *testing.T) {
	tl, path, logs := newTestTailer(t)

	tl.drain()
	if n := logs.Len(); n != 0 {
		t.Fatalf("Len = %d before the file exists", n)
	}

	appendFile(t, path, "late arrival\n")
	tl.drain()
	if got := messages(logs); len(got) != 1 || got[0] != "late arrival" {
		t.Errorf("messages = %v", got)
	}
}

func TestTailerRunStopsOnCancel(t *testing.T) {
	tl, path, logs := newTestTailer(t)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- tl.Run(ctx) }()

	appendFile(t, path, "watched line\n")
	deadline := time.Now().Add(2 * time.Second)
	for logs.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := messages(logs); len(got) != 1 || got[0] != "watched line" {
		t.Fatalf("messages = %v, want [watched line]", got)
	}

	cancel()
	select {
	case err := <-errs:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
