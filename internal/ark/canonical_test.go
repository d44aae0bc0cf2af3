package ark

import (
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	t.Run("sorts object keys", func(t *testing.T) {
		got, err := Canonicalize(map[string]any{"b": 1, "a": 2, "c": 3})
		if err != nil {
			t.Fatalf("Canonicalize() error = %v", err)
		}
		want := `{"a":2,"b":1,"c":3}`
		if string(got) != want {
			t.Errorf("Canonicalize() = %s, want %s", got, want)
		}
	})

	t.Run("sorts nested object keys", func(t *testing.T) {
		got, err := Canonicalize(map[string]any{
			"outer": map[string]any{"z": "last", "a": "first"},
		})
		if err != nil {
			t.Fatalf("Canonicalize() error = %v", err)
		}
		want := `{"outer":{"a":"first","z":"last"}}`
		if string(got) != want {
			t.Errorf("Canonicalize() = %s, want %s", got, want)
		}
	})

	t.Run("preserves array order", func(t *testing.T) {
		got, err := Canonicalize(map[string]any{"items": []any{3, 1, 2}})
		if err != nil {
			t.Fatalf("Canonicalize() error = %v", err)
		}
		want := `{"items":[3,1,2]}`
		if string(got) != want {
			t.Errorf("Canonicalize() = %s, want %s", got, want)
		}
	})

	t.Run("preserves number representation", func(t *testing.T) {
		got, err := Canonicalize(map[string]any{"f": 1.5, "i": 42, "big": 9007199254740993.0})
		if err != nil {
			t.Fatalf("Canonicalize() error = %v", err)
		}
		if !strings.Contains(string(got), `"f":1.5`) {
			t.Errorf("float not preserved: %s", got)
		}
		if !strings.Contains(string(got), `"i":42`) {
			t.Errorf("integer not preserved: %s", got)
		}
	})

	t.Run("does not escape HTML characters", func(t *testing.T) {
		got, err := Canonicalize(map[string]any{"s": "<a>&</a>"})
		if err != nil {
			t.Fatalf("Canonicalize() error = %v", err)
		}
		want := `{"s":"<a>&</a>"}`
		if string(got) != want {
			t.Errorf("Canonicalize() = %s, want %s", got, want)
		}
	})

	t.Run("handles null and booleans", func(t *testing.T) {
		got, err := Canonicalize(map[string]any{"n": nil, "t": true, "f": false})
		if err != nil {
			t.Fatalf("Canonicalize() error = %v", err)
		}
		want := `{"f":false,"n":null,"t":true}`
		if string(got) != want {
			t.Errorf("Canonicalize() = %s, want %s", got, want)
		}
	})

	t.Run("applies struct tags", func(t *testing.T) {
		v := struct {
			B string `json:"beta"`
			A string `json:"alpha"`
		}{B: "2", A: "1"}
		got, err := Canonicalize(v)
		if err != nil {
			t.Fatalf("Canonicalize() error = %v", err)
		}
		want := `{"alpha":"1","beta":"2"}`
		if string(got) != want {
			t.Errorf("Canonicalize() = %s, want %s", got, want)
		}
	})

	t.Run("unmarshalable value is an error", func(t *testing.T) {
		if _, err := Canonicalize(map[string]any{"ch": make(chan int)}); err == nil {
			t.Error("Canonicalize() expected error for channel value")
		}
	})
}

func TestHashCanonical(t *testing.T) {
	t.Run("insertion order does not matter", func(t *testing.T) {
		a := map[string]any{}
		a["x"] = 1
		a["y"] = "two"
		a["z"] = []any{true, nil}

		b := map[string]any{}
		b["z"] = []any{true, nil}
		b["y"] = "two"
		b["x"] = 1

		ha, err := HashCanonical(a)
		if err != nil {
			t.Fatalf("HashCanonical(a) error = %v", err)
		}
		hb, err := HashCanonical(b)
		if err != nil {
			t.Fatalf("HashCanonical(b) error = %v", err)
		}
		if ha != hb {
			t.Errorf("hashes differ: %s vs %s", ha, hb)
		}
	})

	t.Run("different values produce different hashes", func(t *testing.T) {
		ha, _ := HashCanonical(map[string]any{"v": 1})
		hb, _ := HashCanonical(map[string]any{"v": 2})
		if ha == hb {
			t.Error("distinct values hashed identically")
		}
	})

	t.Run("output is lowercase hex sha256", func(t *testing.T) {
		h, err := HashCanonical(map[string]any{"v": "x"})
		if err != nil {
			t.Fatalf("HashCanonical() error = %v", err)
		}
		if len(h) != 64 {
			t.Errorf("hash length = %d, want 64", len(h))
		}
		if h != strings.ToLower(h) {
			t.Errorf("hash not lowercase: %s", h)
		}
	})
}
