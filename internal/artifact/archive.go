package artifact

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extract unpacks a docker copy tar stream under dest and returns the
// relative paths of the regular files it wrote, sorted. The leading path
// element (the copied directory's own name) is stripped so dest holds the
// directory's contents directly.
func Extract(r io.Reader, dest string) ([]string, error) {
	if dest == "" {
		return nil, fmt.Errorf("destination cannot be empty")
	}
	tr := tar.NewReader(r)
	var files []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		name := stripRoot(hdr.Name)
		if name == "" {
			continue
		}
		target, err := secureJoin(dest, name)
		if err != nil {
			return nil, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create dir: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("create dir: %w", err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("create file: %w", err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return nil, fmt.Errorf("write file: %w", err)
			}
			if err := f.Close(); err != nil {
				return nil, fmt.Errorf("close file: %w", err)
			}
			files = append(files, name)
		default:
			// Symlinks and specials from a container are not trusted.
			continue
		}
	}
	sort.Strings(files)
	return files, nil
}

func stripRoot(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	parts := strings.SplitN(name, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func secureJoin(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

// Bundle writes the named files under dir into a zip archive.
func Bundle(dir string, files []string, w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range files {
		src, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		entry, err := zw.Create(name)
		if err != nil {
			src.Close()
			return fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := io.Copy(entry, src); err != nil {
			src.Close()
			return fmt.Errorf("bundle %s: %w", name, err)
		}
		src.Close()
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize bundle: %w", err)
	}
	return nil
}
