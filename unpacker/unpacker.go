// Package unpacker extracts the zip archives of a directory.
package unpacker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/log"
	"github.com/mholt/archiver"
)

// UnpackAll extracts every regular file of srcDir (sorted by name) as a zip archive into dstDir,
// overwriting the existing files. Sub-directories of srcDir are skipped.
// The first archive that cannot be extracted stops the process with a service.ErrArchive:
// the following archives are not extracted. Returns the archives extracted.
func UnpackAll(ctx context.Context, srcDir, dstDir string) ([]string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, service.Wrap(service.ErrFileNotFound, fmt.Errorf("UnpackAll: %w", err))
		}
		return nil, service.Wrap(service.ErrStorage, fmt.Errorf("UnpackAll: %w", err))
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return nil, service.Wrap(service.ErrStorage, fmt.Errorf("UnpackAll: %w", err))
	}

	var extracted []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return extracted, fmt.Errorf("UnpackAll: %w", err)
		}
		archive := filepath.Join(srcDir, entry.Name())
		log.Logger(ctx).Sugar().Debugf("extracting %s", entry.Name())
		if err := Unpack(archive, dstDir); err != nil {
			return extracted, fmt.Errorf("UnpackAll.%w", err)
		}
		extracted = append(extracted, archive)
	}
	log.Logger(ctx).Sugar().Infof("%d archives extracted to %s", len(extracted), dstDir)
	return extracted, nil
}

// Unpack extracts the zip archive into dstDir
func Unpack(archive, dstDir string) error {
	z := archiver.Zip{OverwriteExisting: true, MkdirAll: true}
	if err := z.Unarchive(archive, dstDir); err != nil {
		return service.Wrap(service.ErrArchive, fmt.Errorf("Unpack[%s]: %w", filepath.Base(archive), err))
	}
	return nil
}
