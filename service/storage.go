package service

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage"
	"github.com/airbusgeo/geocube/interface/storage/uri"
	"github.com/mholt/archiver"
)

// ErrArtifactNotFound is an error returned by Fetch
type ErrArtifactNotFound struct {
	File string
}

func (e ErrArtifactNotFound) Error() string {
	return fmt.Sprintf("File not found: %s", e.File)
}

// Is implements errors.Is: an ErrArtifactNotFound is an ErrFileNotFound
func (e ErrArtifactNotFound) Is(target error) bool {
	return target == ErrFileNotFound
}

func isErrNotFound(err error) bool {
	var epath *os.PathError
	return errors.Is(err, gstorage.ErrObjectNotExist) ||
		(errors.As(err, &epath) && os.IsNotExist(epath))
}

// objectStorage is the subset of geocube's storage.Strategy used to publish artifacts
type objectStorage interface {
	UploadFile(ctx context.Context, uri string, data io.ReadCloser, options ...storage.Option) error
	DownloadToFile(ctx context.Context, source, destination string, options ...storage.Option) error
}

// ArtifactStore publishes the artifacts of the workflow (map, product list, matched directories...)
// to a storage (local path, gs://bucket/prefix...) for the downstream processing
type ArtifactStore struct {
	storage objectStorage
	uri     string
}

// NewArtifactStore creates a new ArtifactStore using geocube storage strategies
func NewArtifactStore(ctx context.Context, storageURI string) (*ArtifactStore, error) {
	u, err := uri.ParseUri(storageURI)
	if err != nil {
		return nil, Wrap(ErrConfig, fmt.Errorf("NewArtifactStore.ParseURI: %w", err))
	}

	storageClient, err := u.NewStorageStrategy(ctx)
	if err != nil {
		return nil, Wrap(ErrStorage, fmt.Errorf("NewArtifactStore: %w", err))
	}

	return &ArtifactStore{storage: storageClient, uri: u.String()}, nil
}

// Publish uploads the local file under the given name and returns its uri.
// A directory is published as a zip archive (name.zip)
func (as *ArtifactStore) Publish(ctx context.Context, localFile, name string) (string, error) {
	info, err := os.Stat(localFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", Wrap(ErrFileNotFound, fmt.Errorf("Publish: %w", err))
		}
		return "", Wrap(ErrStorage, fmt.Errorf("Publish: %w", err))
	}

	src := localFile
	if info.IsDir() {
		tmpDir, err := os.MkdirTemp("", "artifact")
		if err != nil {
			return "", Wrap(ErrStorage, fmt.Errorf("Publish.MkdirTemp: %w", err))
		}
		defer os.RemoveAll(tmpDir)
		src = filepath.Join(tmpDir, filepath.Base(localFile)+".zip")
		zipper := archiver.NewZip()
		zipper.CompressionLevel = flate.BestSpeed
		if err := zipper.Archive([]string{localFile}, src); err != nil {
			return "", Wrap(ErrArchive, fmt.Errorf("Publish.Archive: %w", err))
		}
		name += ".zip"
	}

	f, err := os.Open(src)
	if err != nil {
		return "", Wrap(ErrStorage, fmt.Errorf("Publish.Open: %w", err))
	}
	defer f.Close()

	dst := as.getPath(name)
	if !strings.Contains(dst, "://") {
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return "", Wrap(ErrStorage, fmt.Errorf("Publish.MkdirAll: %w", err))
		}
	}
	if err := as.storage.UploadFile(ctx, dst, f); err != nil {
		return "", TransportError(ErrStorage, fmt.Errorf("Publish.UploadFile to %s: %w", dst, err))
	}
	return dst, nil
}

// Fetch downloads a published artifact to the local file
// Raise ErrArtifactNotFound
func (as *ArtifactStore) Fetch(ctx context.Context, name, localFile string) error {
	src := as.getPath(name)
	if err := as.storage.DownloadToFile(ctx, src, localFile); err != nil {
		if isErrNotFound(err) {
			return ErrArtifactNotFound{src}
		}
		return TransportError(ErrStorage, fmt.Errorf("Fetch.DownloadToFile from %s: %w", src, err))
	}
	return nil
}

// getPath returns the uri of the artifact
func (as *ArtifactStore) getPath(name string) string {
	u := as.uri
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u + path.Clean(name)
}
