package main

import "testing"

func TestHumanize(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{hbytes(999), "999B"},
		{hbytes(1500), "1.50KB"},
		{hbytes(176400), "176.40KB"},
		{hbytes(2_500_000_000), "2.50GB"},
		{hrate(12.5), "12.50"},
		{hrate(48000), "48.00K"},
		{hrate(3e15), "3000.00T"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Fatalf("got %q, want %q", tc.got, tc.want)
		}
	}
}
