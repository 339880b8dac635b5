package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one decoded log event.
type Entry struct {
	Time      time.Time
	Level     zerolog.Level
	Message   string
	Component string
	Op        string
	Err       string
	// Fields holds the remaining keys rendered as key=value, sorted.
	Fields []string
	// Raw is the original line.
	Raw string
}

// Tail returns at most n entries from the end of the file at path, oldest
// first.
func Tail(path string, n int) ([]Entry, error) {
	lines, err := tailLines(path, n)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, ParseLine(line))
	}
	return entries, nil
}

func tailLines(path string, n int) ([]string, error) {
	if n <= 0 || strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count, next := 0, 0
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % n
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	if count < n {
		return ring[:count], nil
	}
	return append(ring[next:], ring[:next]...), nil
}

// ParseLine decodes a zerolog JSON line.
func ParseLine(line string) Entry {
	entry := Entry{Raw: line, Level: zerolog.NoLevel}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		entry.Message = line
		return entry
	}

	if v, ok := fields[zerolog.LevelFieldName].(string); ok {
		if lvl, err := zerolog.ParseLevel(v); err == nil {
			entry.Level = lvl
		}
	}
	if v, ok := fields[zerolog.TimestampFieldName].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			entry.Time = ts
		}
	}
	entry.Message, _ = fields[zerolog.MessageFieldName].(string)
	entry.Component, _ = fields["component"].(string)
	entry.Op, _ = fields["op"].(string)
	entry.Err, _ = fields[zerolog.ErrorFieldName].(string)

	for _, k := range []string{
		zerolog.LevelFieldName, zerolog.TimestampFieldName, zerolog.MessageFieldName,
		zerolog.ErrorFieldName, "component", "op", "service",
	} {
		delete(fields, k)
	}
	for k, v := range fields {
		entry.Fields = append(entry.Fields, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(entry.Fields)
	return entry
}
