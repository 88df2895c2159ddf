package risk

import (
	"fmt"
	"os"
	"strings"
)

// KillSignal is an out-of-band kill-switch channel shared with other
// processes. The file-based implementation is the production one; anything
// that can answer "has someone asked us to stop" fits.
type KillSignal interface {
	Check() (active bool, reason string, err error)
	Raise(reason string) error
	Clear() error
}

// FileKillSignal treats the presence of a well-known marker file as an
// activation. The file body, when non-empty, is the activation reason.
type FileKillSignal struct {
	Path string
}

func (s FileKillSignal) Check() (bool, string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("FileKillSignal.Check: %w", err)
	}

	reason := strings.TrimSpace(string(data))
	if reason == "" {
		reason = "external kill switch marker found"
	}

	return true, reason, nil
}

func (s FileKillSignal) Raise(reason string) error {
	if err := os.WriteFile(s.Path, []byte(reason+"\n"), 0644); err != nil {
		return fmt.Errorf("FileKillSignal.Raise: %w", err)
	}

	return nil
}

func (s FileKillSignal) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("FileKillSignal.Clear: %w", err)
	}

	return nil
}
