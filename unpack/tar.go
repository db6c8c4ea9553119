package unpack

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func init() {
	Register("tar", UnpackTar)
}

// UnpackTar extracts every regular file in src into workDir, reporting each
// output path via prog as it is written, mirroring the original's
// unpack_tar contract (one archive in, N file paths out).
func UnpackTar(src, workDir string, prog func(string)) ([]string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("unpack: open %s: %w", src, err)
	}
	defer f.Close()

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("unpack: mkdir %s: %w", workDir, err)
	}

	tr := tar.NewReader(f)
	var out []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("unpack: tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		// guard against path traversal via "../" entries
		name := filepath.Clean(hdr.Name)
		if strings.HasPrefix(name, "..") {
			return out, fmt.Errorf("unpack: tar entry escapes working dir: %s", hdr.Name)
		}
		dst := filepath.Join(workDir, name)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return out, err
		}
		w, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777))
		if err != nil {
			return out, err
		}
		_, cpErr := io.Copy(w, tr)
		w.Close()
		if cpErr != nil {
			return out, fmt.Errorf("unpack: write %s: %w", dst, cpErr)
		}
		out = append(out, dst)
		if prog != nil {
			prog(dst)
		}
	}
	return out, nil
}
