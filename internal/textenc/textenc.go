package textenc

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Python source is UTF-8 by default (PEP 3120), but editors and playground
// submissions still hand us UTF-16 with BOMs and the occasional legacy
// Latin file. Everything is normalized to UTF-8 before it reaches the
// checker.

type Result struct {
	Encoding string `json:"encoding"`
	HasBOM   bool   `json:"has_bom"`
}

func Detect(data []byte) Result {
	if len(data) == 0 {
		return Result{Encoding: "utf-8"}
	}

	if r, ok := detectBOM(data); ok {
		return r
	}

	// UTF-16 before the UTF-8 check: ASCII text in UTF-16 is byte-wise
	// valid UTF-8 (NUL is a legal codepoint), just unreadable.
	if r, ok := detectUTF16(data); ok {
		return r
	}

	if utf8.Valid(data) {
		return Result{Encoding: "utf-8"}
	}

	return Result{Encoding: "windows-1252"}
}

func detectBOM(data []byte) (Result, bool) {
	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
		return Result{Encoding: "utf-8", HasBOM: true}, true
	}
	if len(data) >= 2 {
		if bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
			return Result{Encoding: "utf-16le", HasBOM: true}, true
		}
		if bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
			return Result{Encoding: "utf-16be", HasBOM: true}, true
		}
	}
	return Result{}, false
}

// detectUTF16 looks for the null-byte cadence of BOM-less UTF-16 text.
func detectUTF16(data []byte) (Result, bool) {
	if len(data) < 2 || len(data)%2 != 0 {
		return Result{}, false
	}

	oddNulls, evenNulls := 0, 0
	for i := 0; i < len(data); i += 2 {
		if data[i] == 0 {
			evenNulls++
		}
		if data[i+1] == 0 {
			oddNulls++
		}
	}

	pairs := len(data) / 2
	if float64(oddNulls)/float64(pairs) > 0.75 {
		return Result{Encoding: "utf-16le"}, true
	}
	if float64(evenNulls)/float64(pairs) > 0.75 {
		return Result{Encoding: "utf-16be"}, true
	}
	return Result{}, false
}

// Normalize decodes data using the detected encoding and returns valid
// UTF-8, replacing undecodable bytes with U+FFFD.
func Normalize(data []byte) string {
	return NormalizeAs(data, Detect(data))
}

func NormalizeAs(data []byte, detected Result) string {
	data = stripBOM(data, detected)

	switch detected.Encoding {
	case "utf-8":
		return string(bytes.ToValidUTF8(data, []byte("�")))
	case "utf-16le":
		return decodeWithFallback(data, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
	case "utf-16be":
		return decodeWithFallback(data, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder())
	case "windows-1252":
		return decodeWithFallback(data, charmap.Windows1252.NewDecoder())
	default:
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
}

func stripBOM(data []byte, detected Result) []byte {
	if !detected.HasBOM {
		return data
	}

	switch detected.Encoding {
	case "utf-8":
		if len(data) >= 3 {
			return data[3:]
		}
	case "utf-16le", "utf-16be":
		if len(data) >= 2 {
			return data[2:]
		}
	}
	return data
}

func decodeWithFallback(data []byte, decoder *encoding.Decoder) string {
	if len(data) == 0 {
		return ""
	}

	reader := transform.NewReader(bytes.NewReader(data), decoder)
	result, err := io.ReadAll(reader)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}

	return string(bytes.ToValidUTF8(result, []byte("�")))
}

// ReadFile reads a source file and returns its content as UTF-8.
func ReadFile(path string) (string, Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", Result{}, err
	}

	detected := Detect(data)
	return NormalizeAs(data, detected), detected, nil
}
