// Package project derives the stable project identity and persists the
// on-disk bridge descriptor used for out-of-process discovery.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ConfigDirName is the per-project directory holding bridge state.
const ConfigDirName = ".unityctl"

// DescriptorFileName is the discovery file written under ConfigDirName.
const DescriptorFileName = "bridge.json"

// ErrBridgeRunning indicates another live Bridge already owns the project.
var ErrBridgeRunning = errors.New("bridge already running for project")

// Descriptor is the discovery record published by a running Bridge.
type Descriptor struct {
	ProjectID string `json:"projectId"`
	Port      int    `json:"port"`
	PID       int    `json:"pid"`
}

// ComputeProjectID derives the stable project identifier from the project
// path: "proj-" plus the first 8 hex digits of SHA-256 of the canonicalized
// path. The CLI and the editor plugin reproduce this byte-for-byte, so the
// canonicalization is pinned here: absolute, symlinks resolved where the
// path exists, cleaned, case-preserving on POSIX, lower-cased on Windows.
func ComputeProjectID(path string) string {
	p := path
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	p = filepath.Clean(p)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	sum := sha256.Sum256([]byte(p))
	return "proj-" + hex.EncodeToString(sum[:4])
}

// DescriptorPath returns the descriptor file path for a project root.
func DescriptorPath(projectRoot string) string {
	return filepath.Join(projectRoot, ConfigDirName, DescriptorFileName)
}

// WriteDescriptor persists the descriptor atomically (temp-then-rename) so a
// concurrent reader never observes a partial file.
func WriteDescriptor(projectRoot string, d Descriptor) error {
	dir := filepath.Join(projectRoot, ConfigDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s dir: %w", ConfigDirName, err)
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, DescriptorFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp descriptor: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close descriptor: %w", err)
	}
	if err := os.Rename(tmpName, DescriptorPath(projectRoot)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish descriptor: %w", err)
	}
	return nil
}

// ReadDescriptor loads the descriptor for a project root. Callers must
// tolerate a missing file (os.IsNotExist on the wrapped error).
func ReadDescriptor(projectRoot string) (Descriptor, error) {
	var d Descriptor
	data, err := os.ReadFile(DescriptorPath(projectRoot))
	if err != nil {
		return d, fmt.Errorf("read descriptor: %w", err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse descriptor: %w", err)
	}
	return d, nil
}

// EnsureNotRunning refuses startup when a live Bridge holds the descriptor.
// Liveness means the recorded PID exists and the recorded port answers a
// /health probe. A stale descriptor (dead PID or unreachable port) is not an
// error; the caller overwrites it.
func EnsureNotRunning(projectRoot string) error {
	d, err := ReadDescriptor(projectRoot)
	if err != nil {
		return nil
	}
	if d.PID <= 0 || !pidAlive(d.PID) {
		return nil
	}
	if !healthOK(d.Port) {
		return nil
	}
	return fmt.Errorf("%w: pid %d on port %d", ErrBridgeRunning, d.PID, d.Port)
}

func healthOK(port int) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
