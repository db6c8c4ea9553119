package unpack

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

func init() {
	Register("xrit", UnpackXRIT)
}

// UnpackXRIT shells out to the external xRITDecompress binary, exactly as
// the original does — xRIT decompression itself lives outside this
// process; this unpacker is just the subprocess boundary, named so the
// producer's "compression" config key can select it like any other
// unpacker.
func UnpackXRIT(src, workDir string, prog func(string)) ([]string, error) {
	cmd := exec.Command("xRITDecompress", "-o", workDir, src)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("unpack: xRITDecompress %s: %w: %s", src, err, out)
	}
	dst := filepath.Join(workDir, filepath.Base(src))
	if prog != nil {
		prog(dst)
	}
	return []string{dst}, nil
}
