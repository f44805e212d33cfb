package worker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ErrWorkerNotFound means no packaged executable or development script was
// found at any candidate location.
var ErrWorkerNotFound = errors.New("worker not found")

// ModeKind distinguishes a packaged worker executable from the development
// Python script.
type ModeKind int

const (
	// Production runs a packaged sidecar executable.
	Production ModeKind = iota
	// Development runs the worker script through an interpreter.
	Development
)

// Mode is the resolved worker launch target.
type Mode struct {
	Kind ModeKind
	Path string
}

func (m Mode) String() string {
	if m.Kind == Production {
		return fmt.Sprintf("production(%s)", m.Path)
	}
	return fmt.Sprintf("development(%s)", m.Path)
}

const scriptName = "worker_daemon.py"

func sidecarName() string {
	if runtime.GOOS == "windows" {
		return "worker_daemon.exe"
	}
	return "worker_daemon"
}

// DetectMode probes the candidate locations relative to the running
// executable: the packaged sidecar first, then the development script. When
// nothing is found it returns ErrWorkerNotFound together with a last-resort
// script Mode, so a spawn attempt still produces a descriptive OS error.
func DetectMode() (Mode, error) {
	exe, err := os.Executable()
	if err != nil {
		return Mode{}, fmt.Errorf("resolving own executable: %w", err)
	}
	return DetectModeAt(filepath.Dir(exe))
}

// DetectModeAt probes the candidate locations relative to the given
// directory.
func DetectModeAt(exeDir string) (Mode, error) {
	name := sidecarName()

	// Sidecar locations: app bundle resources, the onedir layout next to the
	// executable, and the onefile layout.
	sidecarPaths := []string{
		filepath.Join(exeDir, "..", "Resources", "worker_daemon", name),
		filepath.Join(exeDir, "worker_daemon", name),
		filepath.Join(exeDir, name),
	}
	for _, p := range sidecarPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return Mode{Kind: Production, Path: p}, nil
		}
	}

	// Development script, walking up from the executable directory.
	scriptPaths := []string{
		filepath.Join(exeDir, "..", "..", "..", scriptName),
		filepath.Join(exeDir, "..", "..", scriptName),
		filepath.Join(exeDir, "..", scriptName),
		scriptName,
	}
	for _, p := range scriptPaths {
		if abs, err := filepath.Abs(p); err == nil {
			if info, statErr := os.Stat(abs); statErr == nil && !info.IsDir() {
				return Mode{Kind: Development, Path: abs}, nil
			}
		}
	}

	fallback := filepath.Join(exeDir, "..", scriptName)
	return Mode{Kind: Development, Path: fallback}, ErrWorkerNotFound
}

// interpreterFor returns the interpreter to launch a development-mode script:
// the project venv if present, else python3 from PATH.
func interpreterFor(scriptPath string) string {
	venv := filepath.Join(filepath.Dir(scriptPath), ".venv", "bin", "python3")
	if _, err := os.Stat(venv); err == nil {
		return venv
	}
	return "python3"
}
