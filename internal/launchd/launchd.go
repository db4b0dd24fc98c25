// Package launchd installs the recurring poll job as a macOS LaunchAgent.
// The polling interval lives here, in the agent definition; the binary
// itself never schedules anything.
package launchd

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"
)

// Label identifies the agent to launchctl.
const Label = "com.nathanev.granola-mailer"

// DefaultIntervalMinutes matches how often the original automation polled.
const DefaultIntervalMinutes = 5

// ErrUnsupported is returned on anything other than macOS.
var ErrUnsupported = errors.New("launchd agents are only supported on macOS")

//go:embed agent.plist.tmpl
var plistTemplate string

// Agent describes one installation of the recurring job.
type Agent struct {
	BinaryPath      string
	IntervalMinutes int
	LogPath         string
}

type plistData struct {
	Label           string
	BinaryPath      string
	IntervalSeconds int
	LogPath         string
}

// Plist renders the LaunchAgent property list for this agent.
func (a Agent) Plist() ([]byte, error) {
	if a.BinaryPath == "" {
		return nil, errors.New("agent binary path is required")
	}
	interval := a.IntervalMinutes
	if interval <= 0 {
		interval = DefaultIntervalMinutes
	}

	tmpl, err := template.New("plist").Parse(plistTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, plistData{
		Label:           Label,
		BinaryPath:      a.BinaryPath,
		IntervalSeconds: interval * 60,
		LogPath:         a.LogPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render plist: %w", err)
	}
	return buf.Bytes(), nil
}

// PlistPath returns where the agent definition lives for the current user.
func PlistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, "Library", "LaunchAgents", Label+".plist"), nil
}

// Install writes the agent plist and loads it. An already-loaded agent is
// unloaded first so interval changes take effect.
func Install(a Agent) (string, error) {
	if runtime.GOOS != "darwin" {
		return "", ErrUnsupported
	}

	if a.LogPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		a.LogPath = filepath.Join(home, "Library", "Logs", "granola-mailer.log")
	}

	data, err := a.Plist()
	if err != nil {
		return "", err
	}

	path, err := PlistPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create LaunchAgents directory: %w", err)
	}

	// Reloading a changed plist requires an unload first; a not-loaded
	// agent makes this a no-op failure we ignore.
	_ = exec.Command("launchctl", "unload", path).Run()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write agent plist: %w", err)
	}

	if out, err := exec.Command("launchctl", "load", path).CombinedOutput(); err != nil {
		return "", fmt.Errorf("launchctl load failed: %v: %s", err, out)
	}
	return path, nil
}

// Uninstall unloads the agent and removes its plist.
func Uninstall() error {
	if runtime.GOOS != "darwin" {
		return ErrUnsupported
	}

	path, err := PlistPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("agent is not installed (no %s)", path)
	}

	if out, err := exec.Command("launchctl", "unload", path).CombinedOutput(); err != nil {
		return fmt.Errorf("launchctl unload failed: %v: %s", err, out)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove agent plist: %w", err)
	}
	return nil
}
