package textenc

import (
	"os"
	"path/filepath"
	"testing"
)

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Result
	}{
		{"empty", nil, Result{Encoding: "utf-8"}},
		{"plain ascii", []byte("x = 1\n"), Result{Encoding: "utf-8"}},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("x = 1\n")...), Result{Encoding: "utf-8", HasBOM: true}},
		{"utf16le bom", append([]byte{0xFF, 0xFE}, utf16le("x = 1\n")...), Result{Encoding: "utf-16le", HasBOM: true}},
		{"utf16be bom", []byte{0xFE, 0xFF, 0x00, 'x'}, Result{Encoding: "utf-16be", HasBOM: true}},
		{"bomless utf16le", utf16le("import os\n"), Result{Encoding: "utf-16le"}},
		{"latin1 bytes", []byte{'c', 'a', 'f', 0xE9}, Result{Encoding: "windows-1252"}},
	}

	for _, tc := range cases {
		if got := Detect(tc.data); got != tc.want {
			t.Errorf("%s: Detect = %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeUTF8Unchanged(t *testing.T) {
	src := "def f() -> str:\n    return \"héllo\"\n"
	if got := Normalize([]byte(src)); got != src {
		t.Errorf("Normalize changed valid UTF-8: %q", got)
	}
}

func TestNormalizeStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("x = 1\n")...)
	if got := Normalize(data); got != "x = 1\n" {
		t.Errorf("Normalize = %q, want BOM stripped", got)
	}
}

func TestNormalizeUTF16(t *testing.T) {
	src := "import os\n"

	withBOM := append([]byte{0xFF, 0xFE}, utf16le(src)...)
	if got := Normalize(withBOM); got != src {
		t.Errorf("utf-16le with BOM: got %q", got)
	}

	if got := Normalize(utf16le(src)); got != src {
		t.Errorf("bomless utf-16le: got %q", got)
	}
}

func TestNormalizeWindows1252(t *testing.T) {
	got := Normalize([]byte{'c', 'a', 'f', 0xE9})
	if got != "café" {
		t.Errorf("Normalize = %q, want café", got)
	}
}

func TestNormalizeInvalidUTF8Replaced(t *testing.T) {
	// A BOM forces the utf-8 path; the stray continuation byte becomes
	// U+FFFD instead of poisoning the string.
	data := append([]byte{0xEF, 0xBB, 0xBF}, 'a', 0x80, 'b')
	got := Normalize(data)
	if got != "a�b" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mod.py")
	data := append([]byte{0xFF, 0xFE}, utf16le("x = 1\n")...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	content, detected, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if content != "x = 1\n" {
		t.Errorf("content = %q", content)
	}
	if detected.Encoding != "utf-16le" || !detected.HasBOM {
		t.Errorf("detected = %+v", detected)
	}
}
