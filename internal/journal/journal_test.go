package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kmorand/killfeed/internal/event"
)

func appendFile(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestReadNew_DeliversCompleteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	var got []event.KillEvent
	tailer := New(path, func(ev event.KillEvent) { got = append(got, ev) }, nil)

	// Missing file is fine.
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew on missing file: %v", err)
	}

	appendFile(t, path, `{"id":"k-1","timestamp":"2026-08-20T11:04:05Z"}`+"\n")
	appendFile(t, path, `{"id":"k-2","timestamp":"2026-08-20T11:04:06Z"}`+"\n")
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(got) != 2 || got[0].ID != "k-1" || got[1].ID != "k-2" {
		t.Fatalf("events = %#v, want k-1 then k-2", got)
	}

	// No growth, no redelivery.
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(events) = %d after idle pass, want 2", len(got))
	}
}

func TestReadNew_HoldsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	var got []event.KillEvent
	tailer := New(path, func(ev event.KillEvent) { got = append(got, ev) }, nil)

	appendFile(t, path, `{"id":"k-1","timestamp":"2026-08-20T1`)
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("partial line delivered: %#v", got)
	}

	appendFile(t, path, `1:04:05Z"}`+"\n")
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(got) != 1 || got[0].ID != "k-1" {
		t.Fatalf("events = %#v, want completed k-1", got)
	}
}

func TestReadNew_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	var got []event.KillEvent
	tailer := New(path, func(ev event.KillEvent) { got = append(got, ev) }, nil)

	appendFile(t, path, "{garbage\n"+`{"id":"k-2","timestamp":"2026-08-20T11:04:06Z"}`+"\n")
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(got) != 1 || got[0].ID != "k-2" {
		t.Fatalf("events = %#v, want only k-2", got)
	}
}

func TestReadNew_TruncationEmitsClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	var got []event.KillEvent
	clears := 0
	tailer := New(path,
		func(ev event.KillEvent) { got = append(got, ev) },
		func() { clears++ })

	appendFile(t, path, `{"id":"k-1","timestamp":"2026-08-20T11:04:05Z"}`+"\n")
	appendFile(t, path, `{"id":"k-2","timestamp":"2026-08-20T11:04:06Z"}`+"\n")
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}

	// Companion rescans: journal rewritten shorter.
	if err := os.WriteFile(path, []byte(`{"id":"k-9","timestamp":"2026-08-20T12:00:00Z"}`+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew after truncate: %v", err)
	}
	if clears != 1 {
		t.Fatalf("clears = %d, want 1", clears)
	}
	if len(got) != 3 || got[2].ID != "k-9" {
		t.Fatalf("events = %#v, want rescan to deliver k-9", got)
	}
}

func TestSeekEnd_SkipsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	appendFile(t, path, `{"id":"old","timestamp":"2026-08-20T10:00:00Z"}`+"\n")

	var got []event.KillEvent
	tailer := New(path, func(ev event.KillEvent) { got = append(got, ev) }, nil)
	if err := tailer.SeekEnd(); err != nil {
		t.Fatalf("SeekEnd: %v", err)
	}
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("events = %#v, want none before new appends", got)
	}

	appendFile(t, path, `{"id":"new","timestamp":"2026-08-20T11:00:00Z"}`+"\n")
	if err := tailer.ReadNew(); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("events = %#v, want only the new append", got)
	}
}
