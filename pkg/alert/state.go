package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TransitionTracker persists each device's last fired condition set so
// notifications are edge-triggered: a condition dispatches only when it
// fires this run and did not fire the previous run. Without this state
// the dashboard would re-notify every run the threshold stays exceeded.
type TransitionTracker struct {
	path string
	prev map[string][]string
	curr map[string][]string
}

// NewTracker loads the persisted state from path. A missing or
// unreadable file starts from empty state, which makes first sight of a
// firing device count as a transition.
func NewTracker(path string) *TransitionTracker {
	t := &TransitionTracker{
		path: path,
		prev: make(map[string][]string),
		curr: make(map[string][]string),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	var stored map[string][]string
	if err := json.Unmarshal(data, &stored); err == nil {
		t.prev = stored
	}
	return t
}

// Observe records the device's state for this run and returns the
// reasons that newly fired, i.e. fired now but not in the previous run.
func (t *TransitionTracker) Observe(deviceID string, s State) []string {
	t.curr[deviceID] = s.Reasons

	var newly []string
	for _, reason := range s.Reasons {
		if !contains(t.prev[deviceID], reason) {
			newly = append(newly, reason)
		}
	}
	return newly
}

// Save persists this run's observed states, replacing the previous
// file. Devices not observed this run drop out, so a device that
// disappears and later returns in alert re-notifies.
func (t *TransitionTracker) Save() error {
	data, err := json.MarshalIndent(t.curr, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alert state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write alert state: %w", err)
	}
	return os.Rename(tmp, t.path)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
