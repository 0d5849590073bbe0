// Package archive unpacks tool payloads. Supported: .zip, .tar, .tar.gz,
// .tgz, .crate and .tar.xz. A single top-level directory is stripped so the
// payload's contents land directly in the destination.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/ulikunitz/xz"
)

// Format is an archive container type.
type Format string

const (
	FormatUnknown Format = ""
	FormatZip     Format = "zip"
	FormatTar     Format = "tar"
	FormatTarGz   Format = "tar.gz"
	FormatTarXz   Format = "tar.xz"
)

// DetectFormat picks a format from the file name.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".vsix"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"), strings.HasSuffix(lower, ".crate"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXz
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	}
	return FormatUnknown
}

// IsArchive reports whether name has an extension Extract understands.
func IsArchive(name string) bool {
	return DetectFormat(name) != FormatUnknown
}

// Extract unpacks src into dest and returns dest. dest must not already
// hold files that the archive would overwrite.
func Extract(src, dest string) (string, error) {
	format := DetectFormat(src)
	if format == FormatUnknown {
		return "", errors.Newf(errors.ErrUnsupportedFormat, "unsupported archive %s", filepath.Base(src))
	}

	staging := dest + ".extracting"
	if err := os.RemoveAll(staging); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "clear %s", staging)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "create %s", staging)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	var err error
	switch format {
	case FormatZip:
		err = extractZip(src, staging)
	case FormatTar, FormatTarGz, FormatTarXz:
		err = extractTarFile(src, staging, format)
	}
	if err != nil {
		return "", err
	}

	root := staging
	if only, ok := soleDir(staging); ok {
		root = only
	}
	if err := mergeInto(root, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func soleDir(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return "", false
	}
	return filepath.Join(dir, entries[0].Name()), true
}

// mergeInto moves the children of src into dest, creating dest if needed.
func mergeInto(src, dest string) error {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return filesystem.MoveDir(src, dest)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "read %s", src)
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dest, e.Name())
		if err := filesystem.Retry(func() error { return os.Rename(from, to) }); err != nil {
			if e.IsDir() {
				if err := filesystem.MoveDir(from, to); err != nil {
					return err
				}
				continue
			}
			if err := filesystem.CopyFile(from, to); err != nil {
				return err
			}
		}
	}
	return nil
}

// safeJoin rejects entries that would escape the destination.
func safeJoin(dest, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrCorruptArchive, "entry %q escapes destination", name)
	}
	return filepath.Join(dest, cleaned), nil
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCorruptArchive, "open %s", filepath.Base(src))
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "create %s", target)
			}
			continue
		}
		if err := writeEntry(target, f.Mode(), func() (io.ReadCloser, error) { return f.Open() }); err != nil {
			return err
		}
	}
	return nil
}

func extractTarFile(src, dest string, format Format) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "open %s", src)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCorruptArchive, "gzip %s", filepath.Base(src))
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case FormatTarXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCorruptArchive, "xz %s", filepath.Base(src))
		}
		r = xzr
	}
	return extractTar(r, dest)
}

func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCorruptArchive, "read tar entry")
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "create %s", target)
			}
		case tar.TypeReg:
			mode := os.FileMode(hdr.Mode).Perm()
			if err := writeEntry(target, mode, func() (io.ReadCloser, error) { return io.NopCloser(tr), nil }); err != nil {
				return err
			}
		case tar.TypeSymlink:
			resolved := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if filepath.IsAbs(hdr.Linkname) || !strings.HasPrefix(resolved, filepath.Clean(dest)+string(filepath.Separator)) {
				return errors.Newf(errors.ErrCorruptArchive, "link %q escapes destination", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(target))
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return errors.Wrapf(err, errors.ErrSymlinkCreate, "link %s", target)
			}
		}
	}
}

func writeEntry(target string, mode os.FileMode, open func() (io.ReadCloser, error)) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(target))
	}
	in, err := open()
	if err != nil {
		return errors.Wrapf(err, errors.ErrCorruptArchive, "open entry %s", target)
	}
	defer func() { _ = in.Close() }()

	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "create %s", target)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, errors.ErrCorruptArchive, "extract %s", target)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "close %s", target)
	}
	return nil
}
