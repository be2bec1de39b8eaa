// Package history keeps an append-only JSONL record of searches. It stores
// outcomes only, never result rows.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/msalah0e/ripple/internal/config"
)

// Search outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusStale = "stale"
)

// Entry represents a single search.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Address     string    `json:"address"`
	ExecutionID string    `json:"execution_id,omitempty"`
	Rows        int       `json:"rows"`
	Nodes       int       `json:"nodes"`
	Links       int       `json:"links"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	Duration    float64   `json:"duration,omitempty"` // seconds
}

// Log is a history file. The zero value is not usable; use Open or Default.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open returns a log stored at path.
func Open(path string) *Log {
	return &Log{path: path}
}

// DefaultPath returns the standard history file location.
func DefaultPath() string {
	return filepath.Join(config.ConfigDir(), "history.jsonl")
}

// Default returns the log at DefaultPath.
func Default() *Log {
	return Open(DefaultPath())
}

// Path returns the backing file.
func (l *Log) Path() string { return l.path }

// Append writes one entry. A zero timestamp is set to now.
func (l *Log) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s\n", data)
	return err
}

// Read returns the last count entries, newest first. count <= 0 returns all.
// Lines that fail to parse are skipped.
func (l *Log) Read(count int) ([]Entry, error) {
	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if json.Unmarshal(line, &e) == nil {
			entries = append(entries, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if count > 0 && len(entries) > count {
		entries = entries[:count]
	}
	return entries, nil
}

// Search finds entries whose address, status, execution id or detail
// contains query, case-insensitively.
func (l *Log) Search(query string, count int) ([]Entry, error) {
	all, err := l.Read(0)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var results []Entry
	for _, e := range all {
		if contains(e.Address, q) || contains(e.Status, q) || contains(e.ExecutionID, q) || contains(e.Detail, q) {
			results = append(results, e)
			if count > 0 && len(results) >= count {
				break
			}
		}
	}
	return results, nil
}

// Clear removes all entries. Clearing an empty log is not an error.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func contains(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}
