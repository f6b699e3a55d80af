package install

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/offkit/offkit/internal/resolve"
)

// stagePayload places the artifact's verified files into stagingDir:
// archives are unpacked, everything else is copied byte-for-byte. It returns
// the staged file names relative to stagingDir, sorted.
//
// Every path written stays inside stagingDir; archive entries that would
// escape it are rejected outright since downloaded archives are untrusted
// input even after a digest match.
func stagePayload(ctx context.Context, payloadRoot string, art *resolve.Artifact, stagingDir string) ([]string, error) {
	var staged []string

	for _, rel := range art.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src := filepath.Join(payloadRoot, filepath.FromSlash(rel))
		switch {
		case isTarGz(rel):
			files, err := extractTarGz(ctx, src, stagingDir)
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", rel, err)
			}
			staged = append(staged, files...)
		case strings.HasSuffix(rel, ".zip"):
			files, err := extractZip(ctx, src, stagingDir)
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", rel, err)
			}
			staged = append(staged, files...)
		default:
			name := installName(art, rel)
			if err := copyFile(src, filepath.Join(stagingDir, filepath.FromSlash(name))); err != nil {
				return nil, fmt.Errorf("copy %s: %w", rel, err)
			}
			staged = append(staged, name)
		}
	}

	sort.Strings(staged)
	return staged, nil
}

// installName maps a payload-root-relative path to its name inside the
// destination: relative to the artifact's kind directory when it lives
// there, the bare file name otherwise.
func installName(art *resolve.Artifact, rel string) string {
	if name, ok := strings.CutPrefix(rel, art.Dir+"/"); ok {
		return name
	}
	return rel[strings.LastIndex(rel, "/")+1:]
}

func isTarGz(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")
}

// checkEntryName rejects archive entry names that could write outside the
// extraction root: absolute paths and ".." segments.
func checkEntryName(name string) error {
	clean := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(clean, "/") || filepath.IsAbs(name) {
		return fmt.Errorf("archive entry has absolute path: %s", name)
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return fmt.Errorf("archive entry escapes extraction root: %s", name)
		}
	}
	return nil
}

// entryTarget resolves an entry name under destDir and double-checks the
// result is still inside destDir.
func entryTarget(destDir, name string) (string, error) {
	if err := checkEntryName(name); err != nil {
		return "", err
	}
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return target, nil
}

// extractTarGz unpacks a .tar.gz archive into destDir and returns the
// regular files created, relative to destDir.
func extractTarGz(ctx context.Context, archivePath, destDir string) ([]string, error) {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	var files []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}

		target, err := entryTarget(destDir, header.Name)
		if err != nil {
			return nil, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := writeFileFrom(target, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return nil, err
			}
			files = append(files, filepath.ToSlash(strings.TrimPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator))))

		case tar.TypeSymlink:
			// Symlink targets get the same escape scrutiny as entry names.
			if err := checkEntryName(header.Linkname); err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return nil, fmt.Errorf("create symlink %s: %w", target, err)
			}

		default:
			// Char/block devices, fifos etc. have no place in a payload.
			continue
		}
	}

	return files, nil
}

// extractZip unpacks a .zip archive into destDir and returns the regular
// files created, relative to destDir.
func extractZip(ctx context.Context, archivePath, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	var files []string
	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target, err := entryTarget(destDir, entry.Name)
		if err != nil {
			return nil, err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("create parent dir for %s: %w", target, err)
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", entry.Name, err)
		}
		err = writeFileFrom(target, rc, entry.Mode().Perm())
		rc.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, filepath.ToSlash(strings.TrimPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator))))
	}

	return files, nil
}

// writeFileFrom creates a file with the given permissions and streams r into
// it. Zero permissions (some archivers omit them) fall back to 0644.
func writeFileFrom(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return out.Close()
}

// copyFile copies src to dst preserving its permission bits, creating parent
// directories as needed.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return writeFileFrom(dst, in, info.Mode().Perm())
}
