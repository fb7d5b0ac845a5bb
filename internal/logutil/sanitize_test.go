package logutil

import "testing"

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"two\nlines", "two lines"},
		{"cr\r\nlf", "cr  lf"},
		{"tab\there", "tab here"},
		{"bell\x07del\x7f", "belldel"},
		{"ünïcödé", "ünïcödé"},
	}
	for _, tt := range tests {
		if got := SanitizeForLog(tt.in); got != tt.want {
			t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("got %q", got)
	}
	if got := Truncate("a\nb", 0); got != "a b" {
		t.Errorf("got %q", got)
	}
}
