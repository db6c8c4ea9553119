package movers

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aistore/movefabric/urlutil"
)

func init() {
	Register("file", func() Mover { return &FileMover{} })
	Register("", func() Mover { return &FileMover{} })
}

// FileMover copies between local paths, hardlinking when possible and
// falling back to a full read/write copy across filesystems.
type FileMover struct{}

func (m *FileMover) Copy(_ context.Context, origin, destination string, _ Params) (string, error) {
	dst := filePath(destination, origin)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.Link(origin, dst); err == nil {
		return urlutil.Clean(destination), nil
	}
	src, err := os.Open(origin)
	if err != nil {
		return "", err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return "", err
	}
	return urlutil.Clean(destination), nil
}

func (m *FileMover) Move(ctx context.Context, origin, destination string, p Params) (string, error) {
	dst, err := m.Copy(ctx, origin, destination, p)
	if err != nil {
		return "", err
	}
	os.Remove(origin)
	return dst, nil
}

// filePath strips a file:// scheme and applies the "trailing slash appends
// basename" convention shared by every mover.
func filePath(destination, origin string) string {
	path := strings.TrimPrefix(destination, "file://")
	if strings.HasSuffix(path, "/") {
		path = filepath.Join(path, filepath.Base(origin))
	}
	return path
}
