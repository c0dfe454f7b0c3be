// Package journal tails the NDJSON event journal written by the local
// log-parsing companion. Each complete line is one kill event; truncation
// means the companion rescanned the log and the feed must start over.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kmorand/killfeed/internal/event"
)

const watchDebounce = 100 * time.Millisecond

// Tailer incrementally reads kill events appended to the journal file.
type Tailer struct {
	path    string
	onEvent func(event.KillEvent)
	onClear func()
	offset  int64
}

// New builds a Tailer for path. onEvent receives each decoded event in file
// order; onClear fires when the journal is truncated (rescan sentinel).
func New(path string, onEvent func(event.KillEvent), onClear func()) *Tailer {
	return &Tailer{path: path, onEvent: onEvent, onClear: onClear}
}

// SeekEnd skips everything already in the journal so only new appends are
// delivered. A missing file is not an error; tailing starts when it appears.
func (t *Tailer) SeekEnd() error {
	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.offset = 0
			return nil
		}
		return fmt.Errorf("stat journal: %w", err)
	}
	t.offset = info.Size()
	return nil
}

// ReadNew processes journal content appended since the last read. Complete
// lines only; a trailing partial line waits for the next pass. Malformed
// lines are dropped with a diagnostic log.
func (t *Tailer) ReadNew() error {
	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat journal: %w", err)
	}

	if info.Size() < t.offset {
		// Journal truncated: the companion rescanned from scratch.
		t.offset = 0
		if t.onClear != nil {
			t.onClear()
		}
	}
	if info.Size() == t.offset {
		return nil
	}

	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(t.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek journal: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil
	}
	complete := data[:end+1]
	t.offset += int64(len(complete))

	for _, line := range bytes.Split(complete, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var ev event.KillEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Printf("journal: dropping undecodable line: %v", err)
			continue
		}
		if t.onEvent != nil {
			t.onEvent(ev)
		}
	}
	return nil
}

// Watch drives ReadNew from filesystem notifications until ctx is cancelled.
// The journal's parent directory is watched so creation and rotation are
// caught; events are debounced to coalesce bursts of appends.
func (t *Tailer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(t.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	base := filepath.Base(t.path)
	var timer *time.Timer
	pending := make(chan struct{}, 1)
	signal := func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, signal)
		case <-pending:
			if err := t.ReadNew(); err != nil {
				log.Printf("journal: read failed: %v", err)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}
