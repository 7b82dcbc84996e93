package internal

import "testing"

func TestNewSessionToken(t *testing.T) {
	first, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken failed: %v", err)
	}
	second, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
	if len(first) != 32 {
		t.Fatalf("expected 32-char token, got %d", len(first))
	}
}

func TestNewOTP(t *testing.T) {
	code, err := NewOTP(6)
	if err != nil {
		t.Fatalf("NewOTP failed: %v", err)
	}
	if len(code) != 6 || !IsNumeric(code) {
		t.Fatalf("expected 6 digits, got %q", code)
	}

	for _, digits := range []int{3, 11, 0, -1} {
		if _, err := NewOTP(digits); err == nil {
			t.Fatalf("expected error for %d digits", digits)
		}
	}
}

func TestIsNumeric(t *testing.T) {
	cases := map[string]bool{
		"123456": true,
		"000000": true,
		"":       false,
		"12a456": false,
		"12 456": false,
		"１２３":    false,
	}
	for input, want := range cases {
		if got := IsNumeric(input); got != want {
			t.Fatalf("IsNumeric(%q) = %v, want %v", input, got, want)
		}
	}
}
