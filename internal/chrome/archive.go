package chrome

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// writeTarGz archives the directory src with every entry under arcname.
// Only directories and regular files are stored; Chrome's singleton
// symlinks and sockets are skipped, as is anything skip reports for its
// slash-separated path relative to src.
func writeTarGz(w io.Writer, src, arcname string, skip func(rel string, dir bool) bool) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(arcname, rel))
		if rel != "." && skip != nil && skip(filepath.ToSlash(rel), fi.IsDir()) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case fi.IsDir():
			hdr, err := tar.FileInfoHeader(fi, "")
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			return tw.WriteHeader(hdr)
		case fi.Mode().IsRegular():
			if isLockFile(fi.Name()) {
				return nil
			}
			hdr, err := tar.FileInfoHeader(fi, "")
			if err != nil {
				return err
			}
			hdr.Name = name
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		default:
			return nil
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to archive profile")
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// extractTarGz unpacks an archive written by writeTarGz into dest, dropping
// the archive's top-level directory so a backup can be restored under any
// profile name.
func extractTarGz(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "not a gzip archive")
	}
	defer gz.Close()

	root := filepath.Clean(dest)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "corrupt archive")
		}

		name := strings.TrimPrefix(filepath.ToSlash(hdr.Name), "./")
		if strings.HasPrefix(name, "/") {
			return errors.Wrap(ErrUnsafeArchive, hdr.Name)
		}
		_, rest, found := strings.Cut(name, "/")
		rest = strings.TrimSuffix(rest, "/")
		if !found || rest == "" {
			if hdr.Typeflag == tar.TypeDir {
				continue
			}
			return errors.Wrap(ErrUnsafeArchive, hdr.Name)
		}

		target := filepath.Join(root, filepath.FromSlash(rest))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return errors.Wrap(ErrUnsafeArchive, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			_ = os.Chtimes(target, time.Now(), hdr.ModTime)
		}
	}
}

func isLockFile(name string) bool {
	for _, l := range lockFiles {
		if name == l {
			return true
		}
	}
	return false
}
