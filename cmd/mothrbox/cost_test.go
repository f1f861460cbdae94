package main

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "1048576", want: 1048576},
		{raw: "1MiB", want: 1 << 20},
		{raw: "10 MB", want: 10_000_000},
		{raw: " 2KiB ", want: 2048},
		{raw: "0", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "lots", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %d, got %d", tt.raw, tt.want, got)
		}
	}
}
