package provider

import (
	"context"

	"github.com/airbusgeo/aoifetch/catalog/entities"
)

// ImageProvider is the interface of an image download service
type ImageProvider interface {
	// Download the archive of a product to the given localDir
	// Returns the path of the archive: localDir/<product name>.zip
	Download(ctx context.Context, product entities.Product, localDir string) (string, error)

	// Name of the provider
	Name() string
}
