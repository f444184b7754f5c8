package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00,
}

func TestFileProber_Probe(t *testing.T) {
	dir := t.TempDir()

	// content wins over a misleading extension
	disguised := filepath.Join(dir, "really-a-png.jpg")
	require.NoError(t, os.WriteFile(disguised, pngHeader, 0o644))

	tests := []struct {
		name     string
		path     string
		declared string
		want     string
	}{
		{name: "sniffed from content", path: disguised, want: "image/png"},
		{name: "missing file uses declared type", path: filepath.Join(dir, "gone.jpg"), declared: "image/jpeg", want: "image/jpeg"},
		{name: "missing file falls back to extension", path: filepath.Join(dir, "gone.gif"), want: "image/gif"},
		{name: "unknown extension", path: filepath.Join(dir, "gone.zzz"), want: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileProber{}.Probe(tt.path, tt.declared))
		})
	}
}
