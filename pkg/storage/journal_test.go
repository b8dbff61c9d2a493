package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileJournalAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "submissions.log")
	j, err := OpenFileJournal(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	j.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	if err := j.Append("ORDER_SUBMIT", map[string]any{"order_id": 7}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := j.Append("ORDER_CANCEL", map[string]any{"order_id": 7}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer f.Close()

	var events []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry struct {
			Timestamp string         `json:"timestamp"`
			Event     string         `json:"event"`
			Data      map[string]any `json:"data"`
		}
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		if entry.Timestamp != "2023-11-14T22:13:20Z" {
			t.Errorf("timestamp = %s", entry.Timestamp)
		}
		if entry.Data["order_id"] != float64(7) {
			t.Errorf("order_id = %v", entry.Data["order_id"])
		}
		events = append(events, entry.Event)
	}
	if len(events) != 2 || events[0] != "ORDER_SUBMIT" || events[1] != "ORDER_CANCEL" {
		t.Errorf("events = %v", events)
	}
}

func TestFileJournalClosed(t *testing.T) {
	j, err := OpenFileJournal(filepath.Join(t.TempDir(), "j.log"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
	if err := j.Append("X", nil); err == nil {
		t.Error("append after close should fail")
	}
}
