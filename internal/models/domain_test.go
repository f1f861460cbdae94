package models

import "testing"

func TestParseFileStatus(t *testing.T) {
	got, err := ParseFileStatus(" ENCRYPTED ")
	if err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if got != FileStatusEncrypted {
		t.Fatalf("expected %q, got %q", FileStatusEncrypted, got)
	}

	if _, err := ParseFileStatus("invalid"); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestStatusForAlgorithm(t *testing.T) {
	if got := StatusForAlgorithm("AES-256-GCM"); got != FileStatusEncrypted {
		t.Fatalf("expected %q, got %q", FileStatusEncrypted, got)
	}
	if got := StatusForAlgorithm("  "); got != FileStatusStored {
		t.Fatalf("expected %q, got %q", FileStatusStored, got)
	}
}

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "0x2", want: true},
		{value: "0x9f3e7a1c0b5d2e4f6a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f", want: true},
		{value: "9f3e", want: false},
		{value: "0x", want: false},
		{value: "0xzz", want: false},
		{value: "", want: false},
	}
	for _, tt := range tests {
		if got := IsValidAddress(tt.value); got != tt.want {
			t.Fatalf("IsValidAddress(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	full := "0x0000000000000000000000000000000000000000000000000000000000000002"
	for _, value := range []string{"0x2", " 0x02 ", full} {
		got, err := NormalizeAddress(value)
		if err != nil {
			t.Fatalf("NormalizeAddress(%q): %v", value, err)
		}
		if got != full {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", value, got, full)
		}
	}

	got, err := NormalizeAddress("0x9F3E7A1C0B5D2E4F6A8B9C0D1E2F3A4B5C6D7E8F9A0B1C2D3E4F5A6B7C8D9E0F")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "0x9f3e7a1c0b5d2e4f6a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f" {
		t.Fatalf("expected lowercase address, got %q", got)
	}

	for _, bad := range []string{"", "0x", "alice", "2"} {
		if _, err := NormalizeAddress(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
