package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func envelope(streamID, body string) []byte {
	return []byte(fmt.Sprintf("{\"stream_id\":%q,\"body\":%q}\n", streamID, body))
}

func TestNewFileStore(t *testing.T) {
	t.Run("creates the ledger file", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore("ledger", dir)
		if err != nil {
			t.Fatalf("NewFileStore() error = %v", err)
		}
		if s.Name() != "ledger" {
			t.Errorf("Name() = %q, want %q", s.Name(), "ledger")
		}
		if _, err := os.Stat(filepath.Join(dir, "ledger.log")); err != nil {
			t.Errorf("ledger file not created: %v", err)
		}
	})

	t.Run("requires a name", func(t *testing.T) {
		if _, err := NewFileStore("", t.TempDir()); err == nil {
			t.Error("NewFileStore() with empty name should fail")
		}
	})

	t.Run("reopens an existing ledger without truncating", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore("ledger", dir)
		if err != nil {
			t.Fatalf("NewFileStore() error = %v", err)
		}
		if _, err := s.Append("s1", envelope("s1", "a")); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		s2, err := NewFileStore("ledger", dir)
		if err != nil {
			t.Fatalf("NewFileStore() reopen error = %v", err)
		}
		data, err := s2.ReadAll("s1")
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if len(data) == 0 {
			t.Error("reopen lost existing data")
		}
	})
}

func TestFileStore_Append(t *testing.T) {
	t.Run("returns the starting offset", func(t *testing.T) {
		s, err := NewFileStore("ledger", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileStore() error = %v", err)
		}

		first := envelope("s1", "a")
		off, err := s.Append("s1", first)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if off != 0 {
			t.Errorf("first offset = %d, want 0", off)
		}

		off, err = s.Append("s1", envelope("s1", "b"))
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if off != int64(len(first)) {
			t.Errorf("second offset = %d, want %d", off, len(first))
		}
	})

	t.Run("requires a stream id", func(t *testing.T) {
		s, _ := NewFileStore("ledger", t.TempDir())
		if _, err := s.Append("", envelope("", "a")); err == nil {
			t.Error("Append() with empty stream id should fail")
		}
	})

	t.Run("interleaves streams in arrival order", func(t *testing.T) {
		s, _ := NewFileStore("ledger", t.TempDir())
		s.Append("s1", envelope("s1", "a"))
		s.Append("s2", envelope("s2", "b"))
		s.Append("s1", envelope("s1", "c"))

		var raw []byte
		err := s.View(func(r io.Reader, _ int64) error {
			var err error
			raw, err = io.ReadAll(r)
			return err
		})
		if err != nil {
			t.Fatalf("View() error = %v", err)
		}
		want := append(append(envelope("s1", "a"), envelope("s2", "b")...), envelope("s1", "c")...)
		if !bytes.Equal(raw, want) {
			t.Errorf("ledger bytes out of order:\n%s", raw)
		}
	})
}

func TestFileStore_ReadAll(t *testing.T) {
	s, _ := NewFileStore("ledger", t.TempDir())
	s.Append("s1", envelope("s1", "a"))
	s.Append("s2", envelope("s2", "b"))
	s.Append("s1", envelope("s1", "c"))

	data, err := s.ReadAll("s1")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	want := append(envelope("s1", "a"), envelope("s1", "c")...)
	if !bytes.Equal(data, want) {
		t.Errorf("ReadAll(s1) = %s, want %s", data, want)
	}

	empty, err := s.ReadAll("missing")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ReadAll(missing) = %s, want empty", empty)
	}
}

func TestFileStore_ContentHash(t *testing.T) {
	s, _ := NewFileStore("ledger", t.TempDir())
	line := envelope("s1", "a")
	s.Append("s1", line)

	got, err := s.ContentHash()
	if err != nil {
		t.Fatalf("ContentHash() error = %v", err)
	}
	sum := sha256.Sum256(line)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("ContentHash() = %s, want %s", got, want)
	}
}

func TestFileStore_PrefixProperty(t *testing.T) {
	// The bytes at any past instant must be a byte prefix of the current
	// file. Appends never rewrite or reorder.
	s, _ := NewFileStore("ledger", t.TempDir())

	var earlier []byte
	for i := 0; i < 10; i++ {
		s.Append("s1", envelope("s1", fmt.Sprintf("e%d", i)))
		if i == 4 {
			s.View(func(r io.Reader, _ int64) error {
				var err error
				earlier, err = io.ReadAll(r)
				return err
			})
		}
	}

	var current []byte
	s.View(func(r io.Reader, _ int64) error {
		var err error
		current, err = io.ReadAll(r)
		return err
	})

	if !bytes.HasPrefix(current, earlier) {
		t.Error("earlier ledger state is not a prefix of the current state")
	}
}

func TestFileStore_ConcurrentAppends(t *testing.T) {
	s, _ := NewFileStore("ledger", t.TempDir())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			stream := fmt.Sprintf("s%d", w)
			for i := 0; i < 25; i++ {
				if _, err := s.Append(stream, envelope(stream, fmt.Sprintf("e%d", i))); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for w := 0; w < 4; w++ {
		data, err := s.ReadAll(fmt.Sprintf("s%d", w))
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		total += bytes.Count(data, []byte("\n"))
	}
	if total != 100 {
		t.Errorf("total lines = %d, want 100", total)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Run("matches file store semantics", func(t *testing.T) {
		s := NewMemoryStore("ledger")

		off, err := s.Append("s1", envelope("s1", "a"))
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if off != 0 {
			t.Errorf("first offset = %d, want 0", off)
		}
		s.Append("s2", envelope("s2", "b"))

		data, err := s.ReadAll("s1")
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if !bytes.Equal(data, envelope("s1", "a")) {
			t.Errorf("ReadAll(s1) = %s", data)
		}

		hash, err := s.ContentHash()
		if err != nil {
			t.Fatalf("ContentHash() error = %v", err)
		}
		full := append(envelope("s1", "a"), envelope("s2", "b")...)
		sum := sha256.Sum256(full)
		if want := hex.EncodeToString(sum[:]); hash != want {
			t.Errorf("ContentHash() = %s, want %s", hash, want)
		}
	})

	t.Run("view reports the size", func(t *testing.T) {
		s := NewMemoryStore("ledger")
		line := envelope("s1", "a")
		s.Append("s1", line)

		err := s.View(func(r io.Reader, size int64) error {
			if size != int64(len(line)) {
				t.Errorf("size = %d, want %d", size, len(line))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View() error = %v", err)
		}
	})
}
