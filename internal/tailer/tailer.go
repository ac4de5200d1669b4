// Package tailer streams appended lines from the editor's log file into the
// unified log pipeline as source=editor entries.
package tailer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/unityctl/unityctl/internal/bridge"
)

// pollInterval backs up fsnotify for filesystems that drop events and for
// the window before the log file first appears.
const pollInterval = 500 * time.Millisecond

// Tailer follows one log file, surviving rotation (replacement) and
// truncation by reopening from the start.
type Tailer struct {
	logger *slog.Logger
	path   string
	logs   *bridge.LogBuffer

	file    *os.File
	offset  int64
	partial []byte
}

// New creates a tailer feeding the given buffer.
func New(logger *slog.Logger, path string, logs *bridge.LogBuffer) *Tailer {
	return &Tailer{logger: logger, path: path, logs: logs}
}

// Run tails until ctx is cancelled. The file not existing yet is not an
// error; the tailer waits for it.
func (t *Tailer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	defer t.closeFile()

	// Watch the directory: the file itself may not exist yet, and rotation
	// replaces the inode a file-level watch would be pinned to.
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		t.drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case ev := <-watcher.Events:
			if ev.Name != t.path {
				continue
			}
		case err := <-watcher.Errors:
			t.logger.Warn("log watcher error", "error", err)
		}
	}
}

// drain reads everything appended since the last call.
func (t *Tailer) drain() {
	info, err := os.Stat(t.path)
	if err != nil {
		t.closeFile()
		return
	}

	if t.file != nil {
		cur, err := t.file.Stat()
		rotated := err != nil || !os.SameFile(cur, info)
		if rotated || info.Size() < t.offset {
			t.closeFile()
		}
	}

	if t.file == nil {
		f, err := os.Open(t.path)
		if err != nil {
			return
		}
		t.file = f
		t.offset = 0
		t.partial = nil
	}

	if info.Size() <= t.offset {
		return
	}

	buf := make([]byte, info.Size()-t.offset)
	n, err := t.file.ReadAt(buf, t.offset)
	if err != nil && err != io.EOF {
		t.logger.Warn("read editor log", "error", err)
		t.closeFile()
		return
	}
	t.offset += int64(n)
	t.emit(buf[:n])
}

// emit splits chunk into lines, carrying a trailing partial line across
// calls, and appends each complete line to the buffer unfiltered.
func (t *Tailer) emit(chunk []byte) {
	data := append(t.partial, chunk...)
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimRight(data[:idx], "\r")
		data = data[idx+1:]
		if len(line) == 0 {
			continue
		}
		t.logs.Append(bridge.LogEntry{
			Source:  bridge.SourceEditor,
			Level:   bridge.LevelLog,
			Message: string(line),
		})
	}
	t.partial = append([]byte(nil), data...)
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
	t.offset = 0
	t.partial = nil
}
