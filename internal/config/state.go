package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// State is what one invocation leaves behind for the next, stored in
// .groucho/state.json.
type State struct {
	Chrome *ChromeState `json:"chrome,omitempty"`
}

// ChromeState describes the Chrome instance started by the CLI.
type ChromeState struct {
	PID        int       `json:"pid"`
	Profile    string    `json:"profile"`
	Port       int       `json:"port"`
	Executable string    `json:"executable"`
	StartedAt  time.Time `json:"started_at"`
}

// StatePath returns the path to .groucho/state.json under root.
func StatePath(root string) string {
	return filepath.Join(root, StateDirName, "state.json")
}

// LoadState reads the state file. A missing file is an empty state.
func LoadState(root string) (*State, error) {
	statePath := StatePath(root)

	data, err := os.ReadFile(statePath)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	return &st, nil
}

// Save writes the state file, creating .groucho when needed.
func (s *State) Save(root string) error {
	statePath := StatePath(root)

	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", StateDirName, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp, statePath)
}
