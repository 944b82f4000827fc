package repl

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
)

func TestHistory_AddAndGet(t *testing.T) {
	h := NewHistory("")
	h.Add("ping")
	h.Add("cache get a")
	h.Add("cache get a")

	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (repeats collapse)", h.Len())
	}
	if h.Get(0) != "cache get a" || h.Get(1) != "ping" {
		t.Errorf("Get = %q, %q", h.Get(0), h.Get(1))
	}
	if h.Get(2) != "" || h.Get(-1) != "" {
		t.Error("out of range should return empty string")
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory("")
	h.maxSize = 3
	for i := 0; i < 5; i++ {
		h.Add("cmd" + strconv.Itoa(i))
	}
	want := []string{"cmd2", "cmd3", "cmd4"}
	got := h.Entries()
	if len(got) != len(want) {
		t.Fatalf("Entries = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entries[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history")

	h := NewHistory(path)
	h.Add("ping")
	h.Add("cache get k")
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("perm = %o, want 600", perm)
		}
	}

	loaded := NewHistory(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 2 || loaded.Get(0) != "cache get k" {
		t.Errorf("loaded = %q", loaded.Entries())
	}
}

func TestHistory_LoadMissingAndMemoryOnly(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "missing"))
	if err := h.Load(); err != nil {
		t.Errorf("Load missing: %v", err)
	}

	mem := NewHistory("")
	mem.Add("x")
	if err := mem.Save(); err != nil {
		t.Errorf("Save in memory: %v", err)
	}
	if err := mem.Load(); err != nil {
		t.Errorf("Load in memory: %v", err)
	}
}

func TestDefaultHistoryPath(t *testing.T) {
	if filepath.Base(DefaultHistoryPath()) != "history" {
		t.Errorf("path = %q", DefaultHistoryPath())
	}
}
