package media

import (
	"bytes"
	"os"
)

// ftypMarker is the ISO base media file format signature. A valid
// container carries it at byte offset 4.
var ftypMarker = []byte("ftyp")

// IsValidContainer reports whether the file at path is a valid MP4
// container. A missing or short file is simply invalid, never an error.
func IsValidContainer(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := f.Read(header)
	if err != nil || n < 8 {
		return false
	}

	return bytes.Equal(header[4:8], ftypMarker)
}
