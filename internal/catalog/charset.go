package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmptyFile is returned when an upload has no content at all.
var ErrEmptyFile = errors.New("empty file")

// DecodeText converts raw upload bytes to a UTF-8 string.
//
// A UTF-8 byte order mark is dropped. Input that is already valid UTF-8 is
// returned unchanged; anything else is treated as Windows-1252, the default
// encoding of spreadsheet CSV exports on Windows.
func DecodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("encoding error: decode windows-1252: %w", err)
	}
	return string(decoded), nil
}
