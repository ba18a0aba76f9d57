package cloud

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// defaultExportDir is the base directory for all point-cloud exports. It is
// intentionally restricted to a single directory so callers cannot write
// outside controlled locations even with arbitrary path arguments.
var defaultExportDir = func() string {
	tmp := os.TempDir()
	abs, err := filepath.Abs(tmp)
	if err != nil {
		log.Printf("export: could not resolve absolute temp dir from %q: %v", tmp, err)
		return tmp
	}
	return filepath.Clean(abs)
}()

// safeExportPath anchors a user-supplied export filename under
// defaultExportDir, rejecting traversal attempts.
func safeExportPath(userPath string) (string, error) {
	if userPath == "" {
		return "", fmt.Errorf("empty export path")
	}
	base := filepath.Base(userPath)
	if base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("invalid export filename")
	}

	joined := filepath.Join(defaultExportDir, base)
	absPath, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("cannot resolve export path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)
	if !strings.HasPrefix(cleanPath, defaultExportDir+string(os.PathSeparator)) && cleanPath != defaultExportDir {
		return "", fmt.Errorf("export path escapes base directory")
	}
	return cleanPath, nil
}

// WritePCD exports the cloud as an ASCII PCD v.7 file with x y z rgb fields,
// the rgb channels packed into a single integer per the PCD convention.
// Returns the resolved path the file was written to.
func (c *Cloud) WritePCD(filePath string) (string, error) {
	if c.Len() == 0 {
		return "", fmt.Errorf("no points to export")
	}
	safePath, err := safeExportPath(filePath)
	if err != nil {
		return "", err
	}

	f, err := os.Create(safePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	n := c.Len()
	fmt.Fprintf(w, "VERSION .7\n"+
		"FIELDS x y z rgb\n"+
		"SIZE 4 4 4 4\n"+
		"TYPE F F F I\n"+
		"COUNT 1 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA ascii\n", n, n)

	for i := 0; i < n; i++ {
		x, y, z := c.Position(i)
		fmt.Fprintf(w, "%f %f %f %d\n", x, y, z, packRGB(c.Color(i)))
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush pcd file: %w", err)
	}
	return safePath, nil
}

// WriteASC exports the cloud as a CloudCompare-compatible .asc file with
// X Y Z R G B columns. Returns the resolved path the file was written to.
func (c *Cloud) WriteASC(filePath string) (string, error) {
	if c.Len() == 0 {
		return "", fmt.Errorf("no points to export")
	}
	safePath, err := safeExportPath(filePath)
	if err != nil {
		return "", err
	}

	f, err := os.Create(safePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Exported points\n")
	fmt.Fprintf(w, "# Format: X Y Z R G B\n")
	for i := 0; i < c.Len(); i++ {
		x, y, z := c.Position(i)
		r, g, b := c.Color(i)
		fmt.Fprintf(w, "%.6f %.6f %.6f %.4f %.4f %.4f\n", x, y, z, r, g, b)
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush asc file: %w", err)
	}
	return safePath, nil
}

// packRGB packs [0,1] rgb channels into the single-int PCD color encoding.
func packRGB(r, g, b float32) int {
	return int(channel255(r))<<16 | int(channel255(g))<<8 | int(channel255(b))
}

func channel255(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
