package relay

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/msalah0e/ripple/internal/config"
)

// PidFile returns the path to the relay PID file.
func PidFile() string {
	return filepath.Join(config.ConfigDir(), "relay.pid")
}

// WritePid records pid as the running relay.
func WritePid(pid int) error {
	if err := os.MkdirAll(filepath.Dir(PidFile()), 0o755); err != nil {
		return err
	}
	return os.WriteFile(PidFile(), []byte(strconv.Itoa(pid)), 0o644)
}

// ReadPid returns the recorded relay PID, if any.
func ReadPid() (int, bool) {
	data, err := os.ReadFile(PidFile())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// RemovePid deletes the PID file.
func RemovePid() error {
	if err := os.Remove(PidFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}
