package unpack

import (
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func init() {
	Register("bzip", UnpackBzip2)
	Register("bz2", UnpackBzip2)
}

// UnpackBzip2 decompresses a single .bz2 file into workDir, mirroring the
// original's bzip (bz2.BZ2File(..., "r")) usage — read-only, exactly what
// stdlib compress/bzip2 provides.
func UnpackBzip2(src, workDir string, prog func(string)) ([]string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("unpack: open %s: %w", src, err)
	}
	defer f.Close()

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("unpack: mkdir %s: %w", workDir, err)
	}

	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	dst := filepath.Join(workDir, name)
	out, err := os.Create(dst)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	if _, err := io.Copy(out, bzip2.NewReader(f)); err != nil {
		return nil, fmt.Errorf("unpack: bzip2 %s: %w", src, err)
	}
	if prog != nil {
		prog(dst)
	}
	return []string{dst}, nil
}
