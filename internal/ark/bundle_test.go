package ark_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"ark-go/internal/ark"
	"ark-go/internal/seal"
	"ark-go/internal/store"
	"ark-go/internal/testutil"
	"ark-go/internal/transport"
)

func newTestBundleManager(t *testing.T, sealer ark.Sealer, tr ark.ArchiveTransport) (*ark.BundleManager, *ark.EventLedger) {
	t.Helper()
	st := store.NewMemoryStore("ledger")
	clock := testutil.FixedClock()
	ledger := ark.NewEventLedger(st, ark.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	m := ark.NewBundleManager(st, tr, sealer, t.TempDir(), "ark", ark.NewNopLogger(), clock)
	return m, ledger
}

func appendTestEvents(t *testing.T, ledger *ark.EventLedger, month time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ts := month.Add(time.Duration(i) * time.Hour)
		if _, err := ledger.Append("s1", "event", map[string]any{"n": i}, ts); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func TestBundleManager_CreateMonthly(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates artifact with checksum and metadata", func(t *testing.T) {
		m, ledger := newTestBundleManager(t, nil, nil)
		appendTestEvents(t, ledger, jan, 3)

		meta, err := m.CreateMonthly("2024-01")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}

		if meta.Label != "2024-01" {
			t.Errorf("Label = %q, want %q", meta.Label, "2024-01")
		}
		// One ledger entry plus one entry per January event.
		if meta.EntryCount != 4 {
			t.Errorf("EntryCount = %d, want 4", meta.EntryCount)
		}
		if !strings.HasSuffix(meta.Path, "ark-2024-01.bundle") {
			t.Errorf("Path = %q", meta.Path)
		}

		sum, err := os.ReadFile(meta.Path + ".sha256")
		if err != nil {
			t.Fatalf("reading checksum companion: %v", err)
		}
		if !strings.HasPrefix(string(sum), meta.SHA256+"  ark-2024-01.bundle") {
			t.Errorf("checksum companion = %q", sum)
		}
	})

	t.Run("bundles only the requested month's events", func(t *testing.T) {
		m, ledger := newTestBundleManager(t, nil, nil)
		appendTestEvents(t, ledger, jan, 2)
		appendTestEvents(t, ledger, feb, 5)

		meta, err := m.CreateMonthly("2024-02")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}
		if meta.EntryCount != 6 {
			t.Errorf("EntryCount = %d, want 6 (ledger + 5 February events)", meta.EntryCount)
		}

		// The ledger entry inside the archive still holds the full history.
		names := listArchiveEntries(t, meta.Path)
		if names[0] != "ledger/ledger.log" {
			t.Errorf("first entry = %q, want ledger/ledger.log", names[0])
		}
		for _, name := range names[1:] {
			if !strings.HasPrefix(name, "events/") || !strings.HasSuffix(name, ".json") {
				t.Errorf("unexpected entry %q", name)
			}
		}
	})

	t.Run("empty month defaults to current", func(t *testing.T) {
		m, _ := newTestBundleManager(t, nil, nil)

		meta, err := m.CreateMonthly("")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}
		if meta.Label != "2024-01" {
			t.Errorf("Label = %q, want clock month 2024-01", meta.Label)
		}
	})

	t.Run("malformed month is rejected", func(t *testing.T) {
		m, _ := newTestBundleManager(t, nil, nil)
		for _, bad := range []string{"2024-13", "2024-1", "202401", "jan-2024"} {
			if _, err := m.CreateMonthly(bad); err == nil {
				t.Errorf("CreateMonthly(%q) should fail", bad)
			}
		}
	})

	t.Run("pushes to the archive transport", func(t *testing.T) {
		tr := transport.NewMemoryTransport()
		m, ledger := newTestBundleManager(t, nil, tr)
		appendTestEvents(t, ledger, jan, 1)

		meta, err := m.CreateMonthly("2024-01")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}

		var fetched bytes.Buffer
		if err := tr.Fetch("ark-2024-01.bundle", &fetched); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		local, err := os.ReadFile(meta.Path)
		if err != nil {
			t.Fatalf("reading artifact: %v", err)
		}
		if !bytes.Equal(fetched.Bytes(), local) {
			t.Error("transported bytes differ from the local artifact")
		}
	})
}

func TestBundleManager_Verify(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("intact bundle verifies", func(t *testing.T) {
		m, ledger := newTestBundleManager(t, nil, nil)
		appendTestEvents(t, ledger, jan, 3)

		meta, err := m.CreateMonthly("2024-01")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}
		if err := m.Verify(meta.Path, nil); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	})

	t.Run("byte flip fails the checksum", func(t *testing.T) {
		m, ledger := newTestBundleManager(t, nil, nil)
		appendTestEvents(t, ledger, jan, 3)

		meta, err := m.CreateMonthly("2024-01")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}

		data, _ := os.ReadFile(meta.Path)
		data[len(data)/2] ^= 0x01
		os.WriteFile(meta.Path, data, 0644)

		if err := m.Verify(meta.Path, nil); !errors.Is(err, ark.ErrBundleCorrupted) {
			t.Errorf("Verify() = %v, want ErrBundleCorrupted", err)
		}
	})

	t.Run("structurally broken archive fails even with a matching checksum", func(t *testing.T) {
		m, ledger := newTestBundleManager(t, nil, nil)
		appendTestEvents(t, ledger, jan, 3)

		meta, err := m.CreateMonthly("2024-01")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}

		// Truncate the archive and regenerate the companion so only the
		// structural walk can catch it.
		data, _ := os.ReadFile(meta.Path)
		data = data[:len(data)/2]
		os.WriteFile(meta.Path, data, 0644)
		line := testutil.SHA256Hex(data) + "  ark-2024-01.bundle\n"
		os.WriteFile(meta.Path+".sha256", []byte(line), 0644)

		if err := m.Verify(meta.Path, nil); !errors.Is(err, ark.ErrBundleCorrupted) {
			t.Errorf("Verify() = %v, want ErrBundleCorrupted", err)
		}
	})
}

func TestBundleManager_Sealed(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("sealed artifact is not a plain gzip stream", func(t *testing.T) {
		m, ledger := newTestBundleManager(t, seal.NewTestSealer(), nil)
		appendTestEvents(t, ledger, jan, 2)

		meta, err := m.CreateMonthly("2024-01")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}
		if !meta.Sealed {
			t.Fatal("metadata does not mark the bundle sealed")
		}

		f, err := os.Open(meta.Path)
		if err != nil {
			t.Fatalf("opening artifact: %v", err)
		}
		defer f.Close()
		if _, err := gzip.NewReader(f); err == nil {
			t.Error("sealed bundle opened as plain gzip")
		}
	})

	t.Run("verifies header-only without the key", func(t *testing.T) {
		m, ledger := newTestBundleManager(t, seal.NewTestSealer(), nil)
		appendTestEvents(t, ledger, jan, 2)

		meta, err := m.CreateMonthly("2024-01")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}
		if err := m.Verify(meta.Path, nil); err != nil {
			t.Errorf("Verify() without key error = %v", err)
		}
	})

	t.Run("walks the full structure with the key", func(t *testing.T) {
		sealer := seal.NewTestSealer()
		m, ledger := newTestBundleManager(t, sealer, nil)
		appendTestEvents(t, ledger, jan, 2)

		meta, err := m.CreateMonthly("2024-01")
		if err != nil {
			t.Fatalf("CreateMonthly() error = %v", err)
		}

		unseal, err := sealer.Unlock("any")
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		if err := m.Verify(meta.Path, unseal); err != nil {
			t.Errorf("Verify() with key error = %v", err)
		}
	})
}

func TestBundleManager_Find(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m, ledger := newTestBundleManager(t, nil, nil)
	appendTestEvents(t, ledger, jan, 1)

	created, err := m.CreateMonthly("2024-01")
	if err != nil {
		t.Fatalf("CreateMonthly() error = %v", err)
	}

	found, err := m.Find("2024-01")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if found.SHA256 != created.SHA256 {
		t.Errorf("Find() SHA256 = %s, want %s", found.SHA256, created.SHA256)
	}

	if _, err := m.Find("2030-12"); !errors.Is(err, ark.ErrBundleNotFound) {
		t.Errorf("Find() = %v, want ErrBundleNotFound", err)
	}
}

// listArchiveEntries returns the entry names of an unsealed bundle in order.
func listArchiveEntries(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening bundle: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("opening gzip stream: %v", err)
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading tar entry: %v", err)
		}
		names = append(names, hdr.Name)
	}
	return names
}
