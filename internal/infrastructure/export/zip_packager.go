package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/garyjia/approval-bridge/internal/application/port"
)

// ZipPackager implements port.ArchivePackager with deflate-compressed zip files.
type ZipPackager struct{}

// NewZipPackager creates a new zip packager
func NewZipPackager() *ZipPackager {
	return &ZipPackager{}
}

// Package writes files into a new archive at dst, flat, by base name.
// A partial archive is removed on failure.
func (p *ZipPackager) Package(ctx context.Context, dst string, files ...string) (err error) {
	if len(files) == 0 {
		return fmt.Errorf("nothing to package")
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(zw, file); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", header.Name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to compress %s: %w", header.Name, err)
	}
	return nil
}

var _ port.ArchivePackager = (*ZipPackager)(nil)
