package core

import (
	"bytes"
	"io"
	"testing"
)

func TestSnapshotReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("code,name\n")...),
			expected: "code,name\n",
		},
		{
			name:     "file without BOM",
			input:    []byte("code,name\n"),
			expected: "code,name\n",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewSnapshotReader(bytes.NewReader(tt.input), int64(len(tt.input)))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
			if reader.BytesRead != int64(len(tt.expected)) {
				t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(tt.expected))
			}
		})
	}
}

func TestSnapshotReader_Progress(t *testing.T) {
	reader := NewSnapshotReader(bytes.NewReader([]byte("0123456789")), 10)
	buf := make([]byte, 5)
	if _, err := io.ReadFull(reader, buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reader.Progress(); got != 50 {
		t.Errorf("Progress() = %d, want 50", got)
	}

	unknown := NewSnapshotReader(bytes.NewReader([]byte("abc")), 0)
	if got := unknown.Progress(); got != 0 {
		t.Errorf("Progress() with unknown total = %d, want 0", got)
	}
}
