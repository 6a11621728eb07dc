package infohash

import "testing"

func TestNew(t *testing.T) {
	if _, err := New(""); err != ErrEmpty {
		t.Fatalf("New(\"\") err = %v, want ErrEmpty", err)
	}
	h, err := New("my-swarm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h != "my-swarm" {
		t.Fatalf("New = %q", h)
	}
}

func TestDigest(t *testing.T) {
	h, _ := New("my-swarm")
	d := h.Digest()
	if len(d) != 40 {
		t.Fatalf("digest length = %d, want 40", len(d))
	}
	if h.Digest() != d {
		t.Fatalf("Digest is not deterministic")
	}
}

func TestBytes20(t *testing.T) {
	h, _ := New("my-swarm")
	d := h.Digest()
	b, err := Bytes20(d)
	if err != nil {
		t.Fatalf("Bytes20: %v", err)
	}
	if b.HexString() != d {
		t.Fatalf("Bytes20 roundtrip = %s, want %s", b.HexString(), d)
	}
	if _, err := Bytes20("short"); err == nil {
		t.Fatalf("expected error for short digest")
	}
}
