package flusher

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aaronwald/ssmd/internal/ring"
)

func newTestRing(t *testing.T) *ring.Ring {
	t.Helper()
	r, err := ring.Open(ring.Config{
		Path:     filepath.Join(t.TempDir(), "ring.buf"),
		SlotSize: 4096,
		Slots:    16,
	})
	if err != nil {
		t.Fatalf("ring.Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// Ring contents drain to {base}/{date}/{feed}.jsonl, one record per line,
// each stamped with the wall-clock write time.
func TestDrainToDatedFile(t *testing.T) {
	r := newTestRing(t)
	baseDir := t.TempDir()

	r.TryWrite([]byte(`{"price":100}`))
	r.TryWrite([]byte(`{"price":101}`))

	f := New(r, baseDir, "kalshi", nil)
	done := make(chan struct{})
	go func() {
		f.Run()
		close(done)
	}()

	waitUntil(t, func() bool { return r.IsEmpty() })
	f.Stop()
	<-done

	today := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(baseDir, today, "kalshi.jsonl")

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected output file at %s: %v", path, err)
	}
	defer file.Close()

	var lines []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	for i, want := range []string{"100", "101"} {
		if !strings.Contains(lines[i], fmt.Sprintf(`"data":{"price":%s}`, want)) {
			t.Fatalf("line %d = %q, missing expected data", i, lines[i])
		}
		if !strings.Contains(lines[i], `"ts":"`+today) {
			t.Fatalf("line %d = %q, missing expected ts prefix", i, lines[i])
		}
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
