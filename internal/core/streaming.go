package core

// streaming.go wraps snapshot files so they can be streamed straight into
// CopyIn without loading them into memory:
//
//   - the UTF-8 BOM (0xEF 0xBB 0xBF) written by Windows programs is removed
//   - bytes read are counted for progress logging

import (
	"bufio"
	"bytes"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SnapshotReader skips a leading UTF-8 BOM and tracks bytes read.
type SnapshotReader struct {
	reader    *bufio.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

// NewSnapshotReader wraps r. total is the file size when known.
func NewSnapshotReader(r io.Reader, total int64) *SnapshotReader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return &SnapshotReader{reader: br, Total: total}
}

// Read implements io.Reader.
func (r *SnapshotReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *SnapshotReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}
