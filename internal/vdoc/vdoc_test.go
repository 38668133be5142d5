package vdoc

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"snippet.py", "def f(x: int) -> str:\n    return str(x)\n"},
		{"empty.py", ""},
		{"unicode.py", "x = \"héllo wörld\" # ünïcode\n"},
		{"spaces in name.py", "pass\n"},
		{"query?chars&=.py", "y = 1\n"},
		{"nulls.py", "A\x00B\x00C\x00D\x00"},
		{"binary.py", "\xff\xfe not utf-8 \x80"},
	}

	for _, tc := range cases {
		uri := Encode(tc.name, tc.content)

		if !strings.HasPrefix(uri, Scheme+":") {
			t.Errorf("Encode(%q) = %q, missing scheme prefix", tc.name, uri)
		}

		got, err := Decode(uri)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", uri, err)
		}
		if got != tc.content {
			t.Errorf("round trip for %q: got %q, want %q", tc.name, got, tc.content)
		}

		name, err := Name(uri)
		if err != nil {
			t.Fatalf("Name(%q) failed: %v", uri, err)
		}
		if name != tc.name {
			t.Errorf("Name(%q) = %q, want %q", uri, name, tc.name)
		}
	}
}

func TestDecodeEmptyContent(t *testing.T) {
	uri := Encode("empty.py", "")

	got, err := Decode(uri)
	if err != nil {
		t.Fatalf("Decode(%q) failed: %v", uri, err)
	}
	if got != "" {
		t.Errorf("Decode(%q) = %q, want empty string", uri, got)
	}
}

func TestDecodeWrongScheme(t *testing.T) {
	_, err := Decode("file:///tmp/x.py")
	if !errors.Is(err, ErrWrongScheme) {
		t.Errorf("expected ErrWrongScheme, got %v", err)
	}
}

func TestDecodeMissingContent(t *testing.T) {
	for _, uri := range []string{
		"typeline:snippet.py",
		"typeline:snippet.py?other=1",
	} {
		_, err := Decode(uri)
		if !errors.Is(err, ErrMissingContent) {
			t.Errorf("Decode(%q): expected ErrMissingContent, got %v", uri, err)
		}
	}
}

func TestDecodeInvalidBase64(t *testing.T) {
	_, err := Decode("typeline:x.py?content=%21%21not-base64%21%21")
	if err == nil {
		t.Error("expected error for invalid base64 content")
	}
}

func TestProviderContent(t *testing.T) {
	p := NewProvider()
	uri := Encode("a.py", "a = 1\n")

	got, err := p.Content(uri)
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if got != "a = 1\n" {
		t.Errorf("Content = %q, want %q", got, "a = 1\n")
	}
}
