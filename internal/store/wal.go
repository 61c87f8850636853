package store

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
)

// WAL is the write-ahead log. Every mutation is written here before being
// applied to the in-memory maps, so a crashed backend rebuilds its state by
// replaying the log on restart.

const (
	opSet        = "set"
	opListAppend = "lappend"
	opListRemove = "lremove"
)

// Entry is one logged mutation.
type Entry struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type WAL struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewWAL opens or creates the log file in append-only mode.
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file, path: path}, nil
}

// Append serialises the entry as one JSON line and syncs it to disk.
func (w *WAL) Append(entry *Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.file.Sync()
}

// Replay reads the log line by line and calls fn for each entry.
// Corrupted lines (a torn final write) are skipped.
func (w *WAL) Replay(fn func(*Entry)) error {
	file, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		fn(&entry)
	}
	return scanner.Err()
}

// Truncate discards the log. Called after a snapshot captured everything.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return err
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	w.file = file
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
