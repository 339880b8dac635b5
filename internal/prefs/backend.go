package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// Backend is a durable string key-value map.
type Backend interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)
	// Set stores value under key. The write is durable when Set returns nil.
	Set(key, value string) error
	Close() error
}

const defaultPrefsPath = "~/.config/ubike/prefs.toml"

// badSuffix is appended to a prefs file that could not be parsed before it
// is replaced.
const badSuffix = ".bad"

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// FileBackend keeps preferences in a flat TOML table.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend for the TOML file at path. An empty path
// uses ~/.config/ubike/prefs.toml. The file is created on first write.
func NewFileBackend(path string) (*FileBackend, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve prefs path: %w", err)
	}
	return &FileBackend{path: resolved}, nil
}

// Path returns the resolved file location.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Get(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (b *FileBackend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.read()
	if err != nil {
		// Keep the unreadable file for manual repair, then start fresh.
		if rerr := os.Rename(b.path, b.path+badSuffix); rerr != nil {
			return fmt.Errorf("set aside unreadable prefs: %w", errors.Join(err, rerr))
		}
		values = map[string]string{}
	}
	values[key] = value
	return b.write(values)
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) read() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	values := map[string]string{}
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse prefs: %w", err)
	}
	return values, nil
}

func (b *FileBackend) write(values map[string]string) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("create temp prefs: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultPrefsPath)
	}
	return ExpandPath(path)
}

// ExpandPath expands a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
