package common

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestMakeRandHexString(t *testing.T) {
	s, err := MakeRandHexString(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("not valid hex: %v", err)
	}

	other, err := MakeRandHexString(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == other {
		t.Fatal("two 256-bit random values came out identical")
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string, got %q", s)
	}
}

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(24)
	b := GenerateRandByteArray(24)
	if len(a) != 24 || len(b) != 24 {
		t.Fatalf("unexpected lengths: %d, %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatal("two random buffers came out identical")
	}
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("buf[%d] = %d, want 0", i, v)
		}
	}

	WipeByteArray(nil) // must not panic
}
